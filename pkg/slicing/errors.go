package slicing

import (
	"errors"

	"github.com/aluedeke/go-ipaslice/pkg/toolexec"
)

var (
	// ErrExtraction means the source archive could not be unpacked
	ErrExtraction = errors.New("archive extraction failed")
	// ErrThinning means an executable could not be reduced to the target architecture
	ErrThinning = errors.New("architecture thinning failed")
	// ErrSigning means a bundle could not be re-signed
	ErrSigning = errors.New("code signing failed")
	// ErrEntitlementsRead means an existing signature's entitlements could not be dumped
	ErrEntitlementsRead = errors.New("reading entitlements failed")
	// ErrProfileDecode means the provisioning profile could not be decoded
	ErrProfileDecode = errors.New("provisioning profile decode failed")
	// ErrManifest means a bundle's Info.plist could not be read or rewritten
	ErrManifest = errors.New("manifest rewrite failed")
)

// ToolError reports a failed step together with the captured tool
// output, if a tool was involved
type ToolError struct {
	Kind   error
	Path   string
	Result *toolexec.Result
	Err    error
}

func (e *ToolError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Result != nil {
		msg += ": " + e.Result.String()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *ToolError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// toolFailure classifies the outcome of a gateway call: a start failure
// or a non-zero exit become a ToolError of the given kind
func toolFailure(kind error, path string, res *toolexec.Result, err error) error {
	if err != nil {
		return &ToolError{Kind: kind, Path: path, Err: err}
	}
	if !res.Success() {
		return &ToolError{Kind: kind, Path: path, Result: res}
	}
	return nil
}

func stepError(kind error, path string, err error) error {
	if err == nil {
		return nil
	}
	return &ToolError{Kind: kind, Path: path, Err: err}
}
