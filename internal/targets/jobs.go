package targets

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Job is one entry of a batch file: a target, the site the query is
// attributed to, and an optional hex seed overriding the target's default.
type Job struct {
	Site   string `json:"site"`
	Target string `json:"target"`
	Seed   string `json:"seed,omitempty"`
}

// Resolve looks up the job's target and decodes its seed.
func (j Job) Resolve() (Spec, error) {
	spec, err := Find(j.Target)
	if err != nil {
		return Spec{}, err
	}
	if j.Seed != "" {
		seed, err := hex.DecodeString(j.Seed)
		if err != nil {
			return Spec{}, fmt.Errorf("job %q: seed: %w", j.Site, err)
		}
		spec.Seed = seed
	}
	return spec, nil
}

// LoadJobs parses the JSON batch file at path.
func LoadJobs(path string) ([]Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	var jobs []Job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, fmt.Errorf("parse jobs: %w", err)
	}
	for i, j := range jobs {
		if j.Target == "" {
			return nil, fmt.Errorf("job %d is missing a target: %+v", i, j)
		}
		jobs[i].Seed = strings.TrimSpace(j.Seed)
		if j.Site == "" {
			jobs[i].Site = j.Target
		}
	}
	return jobs, nil
}
