// Package filetest implements golden-file tests: each source file of a
// testdata/in directory is processed and the output is compared with the
// corresponding .want (output) and .err (errors) files of testdata/out.
package filetest

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/kylelemons/godebug/diff"
)

var testUpdateAllTests = flag.Bool("test.update-all-tests", false, "If set, sets all test.update-*-tests.")

// Func processes the source of a golden-file test and returns its output and
// errors.
type Func func(t *testing.T, src []byte) (output, errors string)

// Run runs fn as a subtest for each file of dir/in with extension ext and
// diffs the results with the golden files of dir/out. If updateFlag is true,
// the golden files are written instead.
func Run(t *testing.T, dir, ext string, updateFlag *bool, fn Func) {
	t.Helper()

	srcDir, resDir := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	for _, fi := range SourceFiles(t, srcDir, ext) {
		fi := fi
		t.Run(fi.Name(), func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}
			out, errs := fn(t, b)
			DiffOutput(t, fi, out, resDir, updateFlag)
			DiffErrors(t, fi, errs, resDir, updateFlag)
		})
	}
}

// SourceFiles returns the regular files of dir with the extension ext, or
// all of them if ext is empty.
func SourceFiles(t *testing.T, dir, ext string) []os.FileInfo {
	t.Helper()

	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}

	dents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	res := make([]os.FileInfo, 0, len(dents))
	for _, dent := range dents {
		if !dent.Type().IsRegular() || (ext != "" && filepath.Ext(dent.Name()) != ext) {
			continue
		}
		fi, err := dent.Info()
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, fi)
	}
	return res
}

// DiffOutput compares output with the .want golden file of fi in resultDir.
func DiffOutput(t *testing.T, fi os.FileInfo, output, resultDir string, updateFlag *bool) {
	t.Helper()
	diffOrUpdate(t, "output", filepath.Join(resultDir, fi.Name()+".want"), output, updateFlag)
}

// DiffErrors compares errors with the .err golden file of fi in resultDir.
// A missing golden file is the same as an empty one.
func DiffErrors(t *testing.T, fi os.FileInfo, errors, resultDir string, updateFlag *bool) {
	t.Helper()
	diffOrUpdate(t, "errors", filepath.Join(resultDir, fi.Name()+".err"), errors, updateFlag)
}

func diffOrUpdate(t *testing.T, label, goldFile, got string, updateFlag *bool) {
	t.Helper()

	if *updateFlag || *testUpdateAllTests {
		if err := os.WriteFile(goldFile, []byte(got), 0600); err != nil {
			t.Fatal(err)
		}
		return
	}

	wantb, err := os.ReadFile(goldFile)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if patch := diff.Diff(string(wantb), got); patch != "" {
		t.Errorf("diff %s:\n%s\n", label, patch)
	}
}
