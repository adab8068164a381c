package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

func sampleGraph(name string) convert.PersistedGraph {
	return convert.PersistedGraph{
		Nodes: []convert.StoreNode{
			{
				NodeID:       "start",
				FlowNodeType: graph.TypeWorkflowStart,
				Name:         "Start",
				Position:     graph.Position{X: 10, Y: 20},
				Outputs: []graph.OutputItem{
					{ID: "userChatInput", Key: "userChatInput", Label: "Question", ValueType: graph.ValueString},
				},
			},
			{
				NodeID:       "chat",
				FlowNodeType: graph.TypeChat,
				Name:         name,
				Inputs: []graph.InputItem{
					{Key: "model", Value: "gpt-4o", ValueType: graph.ValueString},
				},
			},
		},
		Edges: []convert.StoreEdge{
			{Source: "start", SourceHandle: "start-source-right", Target: "chat", TargetHandle: "chat-target-left"},
		},
		ChatConfig: map[string]any{"welcomeText": "hi"},
	}
}

var versionOpts = cmp.Options{cmpopts.EquateEmpty()}

// runStoreContract exercises the behaviour every Store implementation
// must share. appID is unique per run so shared backends stay isolated.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	appID := "app-" + uuid.NewString()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Cleanup(func() {
		list, _ := s.ListVersions(ctx, appID, 0)
		for _, v := range list {
			_ = s.DeleteVersion(ctx, appID, v.ID)
		}
	})

	t.Run("empty app", func(t *testing.T) {
		if _, err := s.LatestVersion(ctx, appID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LatestVersion on empty app: got %v, want ErrNotFound", err)
		}
		list, err := s.ListVersions(ctx, appID, 0)
		if err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("expected no versions, got %d", len(list))
		}
	})

	var saved []Version
	t.Run("save and load", func(t *testing.T) {
		for i, title := range []string{"first", "second", "third"} {
			v, err := s.SaveVersion(ctx, Version{
				AppID:     appID,
				Title:     title,
				Graph:     sampleGraph(title),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
			if err != nil {
				t.Fatalf("SaveVersion(%s): %v", title, err)
			}
			if v.ID == "" {
				t.Fatal("expected generated ID")
			}
			saved = append(saved, v)
		}

		got, err := s.LoadVersion(ctx, appID, saved[1].ID)
		if err != nil {
			t.Fatalf("LoadVersion: %v", err)
		}
		if diff := cmp.Diff(saved[1], got, versionOpts); diff != "" {
			t.Errorf("loaded version mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("latest and list newest first", func(t *testing.T) {
		latest, err := s.LatestVersion(ctx, appID)
		if err != nil {
			t.Fatalf("LatestVersion: %v", err)
		}
		if latest.Title != "third" {
			t.Errorf("latest title = %q, want third", latest.Title)
		}

		list, err := s.ListVersions(ctx, appID, 0)
		if err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		var titles []string
		for _, v := range list {
			titles = append(titles, v.Title)
		}
		if diff := cmp.Diff([]string{"third", "second", "first"}, titles); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}

		limited, err := s.ListVersions(ctx, appID, 2)
		if err != nil {
			t.Fatalf("ListVersions(limit=2): %v", err)
		}
		if len(limited) != 2 || limited[0].Title != "third" {
			t.Errorf("limited list = %+v", limited)
		}
	})

	t.Run("save existing id replaces", func(t *testing.T) {
		v := saved[0]
		v.Title = "first (published)"
		v.IsPublished = true
		if _, err := s.SaveVersion(ctx, v); err != nil {
			t.Fatalf("SaveVersion: %v", err)
		}
		got, err := s.LoadVersion(ctx, appID, v.ID)
		if err != nil {
			t.Fatalf("LoadVersion: %v", err)
		}
		if !got.IsPublished || got.Title != "first (published)" {
			t.Errorf("replacement not stored: %+v", got)
		}
		list, _ := s.ListVersions(ctx, appID, 0)
		if len(list) != 3 {
			t.Errorf("expected 3 versions after replace, got %d", len(list))
		}
	})

	t.Run("apps are isolated", func(t *testing.T) {
		if _, err := s.LoadVersion(ctx, "other-"+appID, saved[0].ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("cross-app load: got %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.DeleteVersion(ctx, appID, saved[2].ID); err != nil {
			t.Fatalf("DeleteVersion: %v", err)
		}
		if _, err := s.LoadVersion(ctx, appID, saved[2].ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("load after delete: got %v, want ErrNotFound", err)
		}
		if err := s.DeleteVersion(ctx, appID, saved[2].ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete: got %v, want ErrNotFound", err)
		}
		latest, err := s.LatestVersion(ctx, appID)
		if err != nil {
			t.Fatalf("LatestVersion: %v", err)
		}
		if latest.ID != saved[1].ID {
			t.Errorf("latest after delete = %s, want %s", latest.ID, saved[1].ID)
		}
	})

	t.Run("missing app id rejected", func(t *testing.T) {
		if _, err := s.SaveVersion(ctx, Version{Title: "orphan"}); !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("got %v, want ErrInvalidVersion", err)
		}
	})
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	runStoreContract(t, s)

	t.Run("stored graph is detached", func(t *testing.T) {
		ctx := context.Background()
		pg := sampleGraph("chat")
		v, err := s.SaveVersion(ctx, Version{AppID: "detached", Graph: pg})
		if err != nil {
			t.Fatal(err)
		}
		pg.Nodes[1].Name = "mutated"
		v.Graph.Nodes[1].Name = "mutated too"

		got, err := s.LoadVersion(ctx, "detached", v.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Graph.Nodes[1].Name != "chat" {
			t.Errorf("stored graph changed to %q", got.Graph.Nodes[1].Name)
		}
	})

	t.Run("created at defaults to clock", func(t *testing.T) {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		s.now = func() time.Time { return fixed }
		v, err := s.SaveVersion(context.Background(), Version{AppID: "clock"})
		if err != nil {
			t.Fatal(err)
		}
		if !v.CreatedAt.Equal(fixed) {
			t.Errorf("CreatedAt = %v, want %v", v.CreatedAt, fixed)
		}
	})

	t.Run("closed", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("double close: %v", err)
		}
		if _, err := s.LatestVersion(context.Background(), "clock"); !errors.Is(err, ErrClosed) {
			t.Errorf("got %v, want ErrClosed", err)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer func() { _ = s.Close() }()

	if s.Path() != ":memory:" {
		t.Errorf("Path() = %q", s.Path())
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	runStoreContract(t, s)
}

func TestSQLiteStore_File(t *testing.T) {
	path := t.TempDir() + "/flows.db"
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	v, err := s.SaveVersion(ctx, Version{AppID: "app", Title: "persisted", Graph: sampleGraph("chat")})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadVersion(ctx, "app", v.ID); !errors.Is(err, ErrClosed) {
		t.Errorf("load after close: got %v, want ErrClosed", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, err := reopened.LoadVersion(ctx, "app", v.ID)
	if err != nil {
		t.Fatalf("LoadVersion after reopen: %v", err)
	}
	if diff := cmp.Diff(v, got, versionOpts); diff != "" {
		t.Errorf("reopened version mismatch (-want +got):\n%s", diff)
	}
}

// TestMySQLStore runs against a real server.
//
//	export TEST_MYSQL_DSN="user:password@tcp(localhost:3306)/test_db"
func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL integration test: Set TEST_MYSQL_DSN environment variable to run")
	}
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	defer func() { _ = s.Close() }()
	runStoreContract(t, s)
}

// TestRedisStore runs against a real server.
//
//	export TEST_REDIS_URL="redis://localhost:6379/0"
func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis integration test: Set TEST_REDIS_URL environment variable to run")
	}
	s, err := NewRedisStore(context.Background(), url)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer func() { _ = s.Close() }()
	runStoreContract(t, s)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
