package problemarchive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

const samplePDoc = `
id: 3
name: Two Sum
type: standard
cases:
  - score: 50
    time_limit: 1000000
    memory_limit: 268435456
  - score: 50
    time_limit: 1000000
    memory_limit: 268435456
`

func sampleArchive(t *testing.T) []byte {
	return buildArchive(t, map[string]string{
		"two-sum/problem.yaml":        samplePDoc,
		"two-sum/data/secret/1.in":    "1 2\n",
		"two-sum/data/secret/1.ans":   "3\n",
		"two-sum/data/secret/2.in":    "5 6\n",
		"two-sum/data/secret/2.ans":   "11\n",
	})
}

func TestImportExpandsCasesToDisk(t *testing.T) {
	dest := t.TempDir()
	problem, err := Import(sampleArchive(t), dest)
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}

	if problem.ID != 3 || problem.Name != "Two Sum" || problem.Type != "standard" {
		t.Fatalf("unexpected problem metadata: %+v", problem)
	}
	if len(problem.Cases) != 2 {
		t.Fatalf("len(Cases) = %d, want 2", len(problem.Cases))
	}

	for i, c := range problem.Cases {
		in, err := os.ReadFile(c.InputFile)
		if err != nil {
			t.Fatalf("reading case %d input: %v", i, err)
		}
		ans, err := os.ReadFile(c.AnswerFile)
		if err != nil {
			t.Fatalf("reading case %d answer: %v", i, err)
		}
		if len(in) == 0 || len(ans) == 0 {
			t.Fatalf("case %d expanded to empty files", i)
		}
		if filepath.Dir(c.InputFile) != filepath.Join(dest, "3") {
			t.Fatalf("case %d input written outside the problem dir: %s", i, c.InputFile)
		}
	}
}

func TestImportRejectsNonZip(t *testing.T) {
	if _, err := Import([]byte("not a zip"), t.TempDir()); err == nil {
		t.Fatal("expected an error for non-zip input")
	}
}

func TestImportRejectsMultipleTopLevelFolders(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"a/problem.yaml":     samplePDoc,
		"b/data/secret/1.in": "x",
	})
	if _, err := Import(data, t.TempDir()); err == nil {
		t.Fatal("expected an error for multiple top-level folders")
	}
}

func TestImportRejectsPathTraversal(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"root/problem.yaml":        samplePDoc,
		"root/../../etc/passwd-ish": "oops",
	})
	if _, err := Import(data, t.TempDir()); err == nil {
		t.Fatal("expected an error for a path-traversal entry")
	}
}

func TestImportRejectsMissingManifest(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"root/data/secret/1.in":  "1\n",
		"root/data/secret/1.ans": "1\n",
	})
	if _, err := Import(data, t.TempDir()); err == nil {
		t.Fatal("expected an error when problem.yaml is missing")
	}
}

func TestImportRejectsMissingCaseFile(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"root/problem.yaml":     samplePDoc,
		"root/data/secret/1.in": "1 2\n",
		// 1.ans and case 2's files intentionally omitted
	})
	if _, err := Import(data, t.TempDir()); err == nil {
		t.Fatal("expected an error when a referenced case file is absent")
	}
}
