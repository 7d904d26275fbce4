package orcaops

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalFingerprintInput is the stable shape hashed for a fingerprint.
// Field order is fixed by struct field order, and env keys are sorted,
// so identical specs always hash identically regardless of map
// iteration order (§3).
type canonicalFingerprintInput struct {
	Image     string            `json:"image"`
	Commands  []string          `json:"commands"`
	Env       map[string]string `json:"env"`
	Artifacts []string          `json:"artifacts"`
}

// Fingerprint computes SHA-256(canonical_json(image, commands, env,
// artifacts)) as specified in §3. Commands are taken in their given
// order; env keys are sorted before marshaling.
func (s *JobSpec) Fingerprint() string {
	return Fingerprint(s.Sandbox.Image, commandStrings(s.Commands), s.Sandbox.Env, s.Artifacts)
}

// Fingerprint computes the §3 fingerprint from raw components, for
// callers that hold the parts without a full JobSpec. JobSpec.Fingerprint
// delegates here; the Baseline Tracker keys on BaselineKey, not on this.
func Fingerprint(image string, commands []string, env map[string]string, artifacts []string) string {
	sortedEnv := make(map[string]string, len(env))
	for k, v := range env {
		sortedEnv[k] = v
	}

	input := canonicalFingerprintInput{
		Image:     image,
		Commands:  append([]string(nil), commands...),
		Env:       sortedEnv,
		Artifacts: append([]string(nil), artifacts...),
	}

	// json.Marshal sorts map keys lexicographically for map[string]string,
	// which is sufficient determinism for the env field.
	data, err := json.Marshal(input)
	if err != nil {
		// Marshaling a struct of strings/slices/maps of strings cannot fail.
		panic("orcaops: unexpected fingerprint marshal error: " + err.Error())
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func commandStrings(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Command
	}
	return out
}

// BaselineKey derives the Performance Baseline key for (image, commands)
// as specified in §3: `image_ref ‖ "::" ‖ join(command, "|")`.
func BaselineKey(image string, commands []string) string {
	return image + "::" + joinPipe(commands)
}

// BaselineKey derives this spec's Performance Baseline key from
// (image, ordered commands) only (§3, §4.9) — deliberately narrower than
// Fingerprint, which also folds in env and artifacts. Two specs that
// differ only in env or collected artifacts share one baseline.
func (s *JobSpec) BaselineKey() string {
	return BaselineKey(s.Sandbox.Image, commandStrings(s.Commands))
}

func joinPipe(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	out := ss[0]
	for _, s := range ss[1:] {
		out += "|" + s
	}
	return out
}
