// Package ipa reads and writes .ipa archives and the bundle trees they
// contain.
package ipa

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks the IPA (a ZIP file) at ipaPath into destDir,
// creating destDir if needed
func Extract(ipaPath, destDir string) error {
	r, err := zip.OpenReader(ipaPath)
	if err != nil {
		return fmt.Errorf("failed to open IPA: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}
	root, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}

	for _, f := range r.File {
		if err := extractZipFile(f, root); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}

	return nil
}

// within reports whether path is root or below it
func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// checkResolved fails when the deepest existing ancestor of path
// resolves outside root, i.e. a symlink extracted earlier would
// redirect the write
func checkResolved(root, path string) error {
	existing := path
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return nil
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return err
	}
	if !within(root, resolved) {
		return fmt.Errorf("%s resolves outside the archive root", path)
	}
	return nil
}

// extractZipFile writes one entry below root, which must already be
// free of symlinks
func extractZipFile(f *zip.File, root string) error {
	// Sanitize the file path to prevent zip slip
	destPath := filepath.Join(root, f.Name)
	if !strings.HasPrefix(destPath, root+string(os.PathSeparator)) {
		return fmt.Errorf("invalid file path: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := checkResolved(root, destPath); err != nil {
			return err
		}
		return os.MkdirAll(destPath, 0755)
	}

	if err := checkResolved(root, filepath.Dir(destPath)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	if info, err := os.Lstat(destPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%s would overwrite a symlink", f.Name)
	}

	srcFile, err := f.Open()
	if err != nil {
		return err
	}
	defer srcFile.Close()

	// Framework versions are stored as symlinks whose content is the target
	if f.Mode()&os.ModeSymlink != 0 {
		data, err := io.ReadAll(srcFile)
		if err != nil {
			return err
		}
		target := string(data)
		if filepath.IsAbs(target) {
			return fmt.Errorf("symlink %s has absolute target %s", f.Name, target)
		}
		if !within(root, filepath.Join(filepath.Dir(destPath), target)) {
			return fmt.Errorf("symlink %s points outside the archive: %s", f.Name, target)
		}
		return os.Symlink(target, destPath)
	}

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, srcFile)
	return err
}

// Repackage writes every entry below srcDir into a new ZIP at outputPath.
// Entry names are relative to srcDir, so a tree holding Payload/ yields
// a valid IPA.
func Repackage(srcDir, outputPath string) (err error) {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := zip.NewWriter(outFile)
	defer func() {
		if cerr := w.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		zipPath := filepath.ToSlash(relPath)

		if info.IsDir() {
			_, err := w.Create(zipPath + "/")
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = zipPath

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			header.Method = zip.Store
			writer, err := w.CreateHeader(header)
			if err != nil {
				return err
			}
			_, err = writer.Write([]byte(target))
			return err
		}

		header.Method = zip.Deflate
		writer, err := w.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})
}

// CopyTree copies the directory tree at src to dst, replacing dst.
// Symlinks are recreated, not followed.
func CopyTree(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to remove existing destination: %w", err)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		dstPath := filepath.Join(dst, relPath)

		switch {
		case info.IsDir():
			return os.MkdirAll(dstPath, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(target, dstPath)
		default:
			return copyFile(path, dstPath, info.Mode().Perm())
		}
	})
}

// copyFile copies a single file from src to dst with the given mode using streaming I/O
func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
