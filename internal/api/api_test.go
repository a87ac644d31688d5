package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/isaz/internal/inventory"
	"github.com/starford/isaz/internal/snapshot"
	"github.com/starford/isaz/internal/status"
	"github.com/starford/isaz/internal/testutil"
)

func newTestServer(t *testing.T, root string, catalog *inventory.Catalog) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandler(root, catalog, testutil.DiscardLogger())))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestListArchives(t *testing.T) {
	catalog := testutil.TestCatalog(t)
	at := time.Date(2021, 5, 6, 1, 2, 3, 0, time.UTC)
	if err := catalog.Record("id-one", "2021-05-05 Y", 1048576, at); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, t.TempDir(), catalog)

	var body struct {
		Archives []ArchiveRecord `json:"archives"`
		Total    int             `json:"total"`
	}
	getJSON(t, srv.URL+"/archives", &body)

	if body.Total != 1 || len(body.Archives) != 1 {
		t.Fatalf("body = %+v", body)
	}
	got := body.Archives[0]
	if got.ArchiveID != "id-one" || got.Description != "2021-05-05 Y" || got.Size != 1048576 {
		t.Errorf("archive = %+v", got)
	}
}

func TestListDirectories(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"2021-05-05 pending/a.jpg":  "a",
		"2020-01-01 current/a.jpg":  "a",
		"2019-12-01 excluded/a.jpg": "a",
		"2018-07-07 corrupt/a.jpg":  "a",
		"stray-file.txt":            "skipped",
	})

	currentDir := filepath.Join(root, "2020-01-01 current")
	snap, err := snapshot.Take(currentDir, status.FileName)
	if err != nil {
		t.Fatal(err)
	}
	if err := status.Write(currentDir, snap); err != nil {
		t.Fatal(err)
	}
	if err := status.MarkIgnored(filepath.Join(root, "2019-12-01 excluded")); err != nil {
		t.Fatal(err)
	}
	corruptSidecar := filepath.Join(root, "2018-07-07 corrupt", status.FileName)
	if err := os.WriteFile(corruptSidecar, []byte("%% corrupted %%\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, root, testutil.TestCatalog(t))

	var body struct {
		Directories []DirectoryState `json:"directories"`
		Total       int              `json:"total"`
	}
	getJSON(t, srv.URL+"/directories", &body)

	if body.Total != 4 {
		t.Fatalf("total = %d, want 4 (stray file must be skipped)", body.Total)
	}

	states := map[string]DirectoryState{}
	for _, d := range body.Directories {
		states[d.Name] = d
	}

	if st := states["2021-05-05 pending"]; st.State != StatePending || st.Files != 1 {
		t.Errorf("pending dir = %+v", st)
	}
	if st := states["2020-01-01 current"]; st.State != StateUpToDate {
		t.Errorf("current dir = %+v", st)
	}
	if st := states["2019-12-01 excluded"]; st.State != StateIgnored {
		t.Errorf("excluded dir = %+v", st)
	}
	if st := states["2018-07-07 corrupt"]; st.State != StateError || st.Error == "" {
		t.Errorf("corrupt dir = %+v", st)
	}
}
