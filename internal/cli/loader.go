package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mapsync/internal/compiler"
	"github.com/roach88/mapsync/internal/ir"
)

// SceneField is the top-level CUE field holding the scene.
const SceneField = "scene"

// LoadResult contains a compiled scene and where it came from.
type LoadResult struct {
	Scene     ir.Scene
	CUEValue  cue.Value // The raw scene value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during scene loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScene compiles the `scene` value of a CUE package directory, or of a
// single .cue file. Every failure is a *LoadError.
func LoadScene(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing scene path: %v", err)}
	}

	dir, args := path, []string{"."}
	cueFiles := []string{path}
	switch {
	case info.IsDir():
		if cueFiles, err = FindCUEFiles(path); err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	case filepath.Ext(path) == ".cue":
		dir, args = filepath.Dir(path), []string{filepath.Base(path)}
	default:
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory or .cue file: %s", path)}
	}

	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", err)}
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	sceneVal := value.LookupPath(cue.ParsePath(SceneField))
	if !sceneVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoScene, Message: fmt.Sprintf("no %q value found in %s", SceneField, path)}
	}

	scene, err := compiler.CompileScene(sceneVal)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{
		Scene:     scene,
		CUEValue:  sceneVal,
		FileCount: len(cueFiles),
	}, nil
}

// FindCUEFiles returns the .cue files under dir. The cue.mod directory and
// hidden directories are skipped: they never hold scene files.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (name == "cue.mod" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		field := compileErr.Field
		if compileErr.Entry != "" {
			field = compileErr.Entry + "." + field
		}
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s", field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeCompile, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
// Scene validation codes (E100-E199) come from compiler.Validate.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeReadFailed  = "E007" // File read error
	ErrCodeNoScene     = "E008" // No scene value in the package
	ErrCodeCompile     = "E009" // Scene does not compile

	ErrCodeStore       = "E020" // Database open/read/write error
	ErrCodeEngineFault = "E021" // One or more engine operations failed
	ErrCodeUnknownID   = "E022" // Id not in the committed scene or engine
	ErrCodeDivergence  = "E023" // Replayed state differs from the store
	ErrCodeScenario    = "E024" // One or more scenarios failed
)

// loadErrorCode returns the code of a *LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
