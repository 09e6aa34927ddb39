package preflight

import (
	"context"

	"splintarr/internal/config"
	"splintarr/internal/store"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// InstanceLister lists the instances whose connectivity should be checked.
type InstanceLister interface {
	ListInstances(ctx context.Context) ([]*store.Instance, error)
}

// RunAll executes the directory, secret, and instance checks. Inactive
// instances are skipped. st may be nil to skip instance checks.
func RunAll(ctx context.Context, cfg *config.Config, st InstanceLister, opener Opener) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	secret, cipher := CheckSecret(cfg.Security.SecretKey)
	results = append(results, secret)

	if st == nil {
		return results
	}
	instances, err := st.ListInstances(ctx)
	if err != nil {
		return append(results, Result{Name: "Instances", Detail: "list failed: " + err.Error()})
	}
	if len(instances) == 0 {
		return append(results, Result{Name: "Instances", Passed: true, Detail: "none registered"})
	}
	for _, inst := range instances {
		if !inst.Active {
			continue
		}
		if cipher == nil {
			results = append(results, Result{Name: instanceLabel(inst), Detail: "skipped (secret key unusable)"})
			continue
		}
		results = append(results, CheckInstance(ctx, inst, cipher, opener))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
