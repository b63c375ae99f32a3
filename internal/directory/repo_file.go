package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileRepository reads the member set from a JSON file keyed by phone:
//
//	{"+79990001122": {"name": "Ivan"}}
//
// The file is the external store; binds are never written back to it.
type FileRepository struct {
	Path string
}

type fileRecord struct {
	Name string `json:"name"`
}

func (r *FileRepository) Load(ctx context.Context) ([]Member, error) {
	raw, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.Path, err)
	}

	var records map[string]fileRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.Path, err)
	}

	members := make([]Member, 0, len(records))
	for phone, rec := range records {
		members = append(members, Member{Phone: phone, DisplayName: rec.Name})
	}
	return members, nil
}
