package inventory

import (
	"os"
	"testing"
	"time"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	dbFile, err := os.CreateTemp("", "isaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	c, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordAndList(t *testing.T) {
	c := testCatalog(t)

	older := time.Date(2021, 5, 5, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC)

	if err := c.Record("id-1", "2021-05-05 Y", 1234, older); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := c.Record("id-2", "2021-06-01 Z", 5678, newer); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rows, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0].ArchiveID != "id-2" {
		t.Errorf("rows[0] = %+v, want newest upload first", rows[0])
	}
	if rows[1].Description != "2021-05-05 Y" || rows[1].Size != 1234 {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestRecordIsIdempotentOnArchiveID(t *testing.T) {
	c := testCatalog(t)
	at := time.Date(2021, 5, 5, 10, 0, 0, 0, time.UTC)

	if err := c.Record("id-1", "first", 1, at); err != nil {
		t.Fatal(err)
	}
	if err := c.Record("id-1", "second", 2, at); err != nil {
		t.Fatal(err)
	}

	rows, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("len = %d, want 1", len(rows))
	}
	if rows[0].Description != "second" || rows[0].Size != 2 {
		t.Errorf("row = %+v, want the re-recorded values", rows[0])
	}
}

func TestReplace(t *testing.T) {
	c := testCatalog(t)
	at := time.Date(2021, 5, 5, 10, 0, 0, 0, time.UTC)

	if err := c.Record("stale", "gone from vault", 1, at); err != nil {
		t.Fatal(err)
	}

	fresh := []Row{
		{ArchiveID: "r-1", Description: "2021-05-05 Y", Size: 100, UploadedAt: at},
		{ArchiveID: "r-2", Description: "2021-06-01 Z", Size: 200, UploadedAt: at.Add(time.Hour)},
	}
	if err := c.Replace(fresh); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	rows, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if r.ArchiveID == "stale" {
			t.Error("stale row survived Replace")
		}
	}
}
