// Package profiler defines the profiler contract driven by the
// SetProfilerParams control command (spec §4.10, §6). spec.md treats
// the profiler as an external collaborator; this package supplies the
// interface plus a klog-backed default so the SetProfilerParams path is
// exercisable standalone, grounded on
// original_source/src/kvstore/kvstore_dist_server.h's
// ProcessServerProfilerCommands / SetProfilerConfig.
package profiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Subcommand is the single trailing digit of a SetProfilerParams body,
// selecting which profiler action the rest of the body configures.
type Subcommand int

const (
	SubcommandSetConfig Subcommand = 0
	SubcommandSetState  Subcommand = 1
	SubcommandDump      Subcommand = 2
)

// Profiler is driven by the command handler's SetProfilerParams case.
// An implementation owns its own config state; SetConfig may be called
// multiple times as new key:value pairs arrive.
type Profiler interface {
	SetConfig(params map[string]string)
	SetState(running bool)
	Pause()
	Dump()
}

// KlogProfiler is the default Profiler: it doesn't actually instrument
// anything, but logs every transition at a verbose level so operators
// can confirm the command path is wired correctly, mirroring the
// teacher's preference for structured logging over silent no-ops.
type KlogProfiler struct {
	rank int

	config map[string]string
}

// NewKlogProfiler returns a Profiler that prefixes any "filename"
// config value with rank, matching SetProfilerConfig's rank-prefixing
// of the output path so concurrent servers don't clobber each other's
// profile dumps.
func NewKlogProfiler(rank int) *KlogProfiler {
	return &KlogProfiler{rank: rank, config: map[string]string{}}
}

func (p *KlogProfiler) SetConfig(params map[string]string) {
	for k, v := range params {
		if k == "filename" {
			v = fmt.Sprintf("rank%d_%s", p.rank, v)
		}
		p.config[k] = v
	}
	klog.V(1).InfoS("profiler config updated", "config", p.config)
}

func (p *KlogProfiler) SetState(running bool) {
	klog.V(1).InfoS("profiler state changed", "running", running)
}

func (p *KlogProfiler) Pause() {
	klog.V(1).Info("profiler paused")
}

func (p *KlogProfiler) Dump() {
	klog.V(1).Info("profiler dump requested")
}

// ParseParams parses the ASCII body of a SetProfilerParams command:
// "k1:v1,k2:v2,...,lastChar" where lastChar is a single-digit
// subcommand tag; the comma before it is optional. It returns the decoded
// key:value pairs and the subcommand.
func ParseParams(body string) (map[string]string, Subcommand, error) {
	if len(body) == 0 {
		return nil, 0, errors.New("profiler: empty SetProfilerParams body")
	}
	tagChar := body[len(body)-1]
	tag, err := strconv.Atoi(string(tagChar))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "profiler: bad subcommand tag %q", string(tagChar))
	}
	rest := strings.TrimSuffix(body[:len(body)-1], ",")

	params := map[string]string{}
	for _, kv := range strings.Split(rest, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, ":", 2)
		if len(parts) != 2 {
			return nil, 0, errors.Errorf("profiler: malformed param %q", kv)
		}
		params[parts[0]] = parts[1]
	}
	return params, Subcommand(tag), nil
}

// Dispatch applies a parsed SetProfilerParams body to p, selecting the
// action by subcommand tag.
func Dispatch(p Profiler, body string) error {
	params, sub, err := ParseParams(body)
	if err != nil {
		return err
	}
	switch sub {
	case SubcommandSetConfig:
		p.SetConfig(params)
	case SubcommandSetState:
		running := params["state"] == "1" || strings.EqualFold(params["state"], "true")
		p.SetState(running)
	case SubcommandDump:
		p.Dump()
	default:
		return errors.Errorf("profiler: unknown subcommand %d", sub)
	}
	return nil
}
