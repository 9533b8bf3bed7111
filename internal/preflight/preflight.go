package preflight

import (
	"context"
	"fmt"
	"strings"

	"ddexer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the offline preflight checks for the given config.
// Network checks are left to callers that want them (see CheckEndpoint).
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Asset cache", cfg.Paths.CacheDir),
	}

	for _, src := range cfg.Sources {
		if strings.TrimSpace(src.LocalDir) != "" {
			results = append(results, CheckDirectoryAccess(sourceCheckName(src, "deliveries"), src.LocalDir))
		}
		results = append(results, CheckCredentials(src))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func sourceCheckName(src config.Source, what string) string {
	return fmt.Sprintf("Source %s %s", src.Name, what)
}
