package ipa

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// PayloadDir is the directory of an extracted IPA holding the .app
const PayloadDir = "Payload"

// FindAppBundle finds the .app bundle inside an extracted IPA
// Returns the full path to the .app directory
func FindAppBundle(extractedDir string) (string, error) {
	payloadDir := filepath.Join(extractedDir, PayloadDir)

	entries, err := os.ReadDir(payloadDir)
	if err != nil {
		return "", fmt.Errorf("failed to read Payload directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".app") {
			return filepath.Join(payloadDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("no .app bundle found in Payload directory")
}

// ReadInfoPlist decodes a bundle's Info.plist and reports the encoding
// it was stored in (plist.BinaryFormat, plist.XMLFormat, ...)
func ReadInfoPlist(bundlePath string) (map[string]interface{}, int, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, "Info.plist"))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read Info.plist: %w", err)
	}

	var info map[string]interface{}
	format, err := plist.Unmarshal(data, &info)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse Info.plist: %w", err)
	}
	return info, format, nil
}

// WriteInfoPlist encodes info into the bundle's Info.plist using format
func WriteInfoPlist(bundlePath string, info map[string]interface{}, format int) error {
	var (
		data []byte
		err  error
	)
	if format == plist.BinaryFormat {
		data, err = plist.Marshal(info, format)
	} else {
		data, err = plist.MarshalIndent(info, format, "\t")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal Info.plist: %w", err)
	}

	if err := os.WriteFile(filepath.Join(bundlePath, "Info.plist"), data, 0644); err != nil {
		return fmt.Errorf("failed to write Info.plist: %w", err)
	}
	return nil
}

// GetAppBundleID reads the bundle ID from an app's Info.plist
func GetAppBundleID(appPath string) (string, error) {
	return infoString(appPath, "CFBundleIdentifier")
}

// GetAppExecutableName reads the executable name from an app's Info.plist
func GetAppExecutableName(appPath string) (string, error) {
	return infoString(appPath, "CFBundleExecutable")
}

func infoString(bundlePath, key string) (string, error) {
	info, _, err := ReadInfoPlist(bundlePath)
	if err != nil {
		return "", err
	}

	value, ok := info[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s not found in Info.plist", key)
	}
	return value, nil
}
