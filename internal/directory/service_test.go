package directory

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("79990001122"); got != "+79990001122" {
		t.Fatalf("expected +79990001122, got %q", got)
	}
	if got := NormalizePhone("+79990001122"); got != "+79990001122" {
		t.Fatalf("expected unchanged, got %q", got)
	}
	// Idempotent: normalizing twice equals normalizing once.
	once := NormalizePhone("79990001122")
	if got := NormalizePhone(once); got != once {
		t.Fatalf("expected idempotent normalization, got %q", got)
	}
	if got := NormalizePhone("  79990001122 "); got != "+79990001122" {
		t.Fatalf("expected trimmed and prefixed, got %q", got)
	}
}

type fakeRepo struct {
	members []Member

	mu    sync.Mutex
	binds map[string]int64
}

func (r *fakeRepo) Load(ctx context.Context) ([]Member, error) { return r.members, nil }

func (r *fakeRepo) SaveBinding(ctx context.Context, phone string, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.binds == nil {
		r.binds = map[string]int64{}
	}
	r.binds[phone] = chatID
	return nil
}

func newTestService(t *testing.T, members ...Member) (*Service, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{members: members}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(context.Background(), repo, log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo
}

func TestAuthenticate_FoundBindsIdentity(t *testing.T) {
	svc, repo := newTestService(t, Member{Phone: "+79990001122", DisplayName: "Ivan"})

	m, ok := svc.Authenticate(context.Background(), "79990001122", 555)
	if !ok {
		t.Fatalf("expected member found")
	}
	if m.DisplayName != "Ivan" {
		t.Fatalf("expected Ivan, got %q", m.DisplayName)
	}
	if m.ChatID != 555 {
		t.Fatalf("expected bound chat id 555, got %d", m.ChatID)
	}
	if repo.binds["+79990001122"] != 555 {
		t.Fatalf("expected persisted bind, got %v", repo.binds)
	}
}

func TestAuthenticate_NotFound(t *testing.T) {
	svc, repo := newTestService(t)

	if _, ok := svc.Authenticate(context.Background(), "+70000000000", 1); ok {
		t.Fatalf("expected not found")
	}
	if len(repo.binds) != 0 {
		t.Fatalf("expected no bind on failed verification")
	}
}

func TestAuthenticate_LastWriterWins(t *testing.T) {
	svc, _ := newTestService(t, Member{Phone: "+79990001122", DisplayName: "Ivan"})

	svc.Authenticate(context.Background(), "+79990001122", 1)
	svc.Authenticate(context.Background(), "+79990001122", 2)

	m, _ := svc.Lookup("+79990001122")
	if m.ChatID != 2 {
		t.Fatalf("expected last bind to win, got %d", m.ChatID)
	}
}

func TestReload_PreservesBindsForSurvivingMembers(t *testing.T) {
	svc, repo := newTestService(t, Member{Phone: "+79990001122", DisplayName: "Ivan"})
	svc.Authenticate(context.Background(), "+79990001122", 7)

	repo.members = []Member{
		{Phone: "+79990001122", DisplayName: "Ivan"},
		{Phone: "+79990003344", DisplayName: "Olga"},
	}
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if svc.Count() != 2 {
		t.Fatalf("expected 2 members, got %d", svc.Count())
	}
	m, _ := svc.Lookup("+79990001122")
	if m.ChatID != 7 {
		t.Fatalf("expected bind preserved across reload, got %d", m.ChatID)
	}
}

func TestFileRepository_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	data := `{"+79990001122": {"name": "Ivan"}, "79990003344": {"name": "Olga"}}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	repo := &FileRepository{Path: path}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(context.Background(), repo, log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, ok := svc.Lookup("+79990001122"); !ok {
		t.Fatalf("expected Ivan present")
	}
	// Keys are normalized on load even when the file omits the plus.
	if m, ok := svc.Lookup("79990003344"); !ok || m.DisplayName != "Olga" {
		t.Fatalf("expected Olga via normalized key, got %+v ok=%v", m, ok)
	}
}

func TestFileRepository_MissingFile(t *testing.T) {
	repo := &FileRepository{Path: filepath.Join(t.TempDir(), "absent.json")}
	if _, err := repo.Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
