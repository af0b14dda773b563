package regen

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
)

// The resolver turns free-text clip targeting into an explicit zero-indexed
// set. Clip numbers in user text are one-based ("clip 2" is index 1). The
// same instruction always resolves to the same set.

var (
	clipListRe = regexp.MustCompile(`\bclips?\s+((?:#?\d+)(?:\s*(?:,|and|&|\s)\s*#?\d+)*)`)
	firstNRe   = regexp.MustCompile(`\bfirst\s+(\d+|\w+)\s+clips?\b`)
	lastNRe    = regexp.MustCompile(`\blast\s+(\d+|\w+)\s+clips?\b`)
	digitsRe   = regexp.MustCompile(`\d+`)
)

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// ResolveTargets maps instruction to the clip indices it addresses. scenes is
// the job's scene plan, used for song-structure references ("the chorus
// clips"). ok is false when the instruction carries no targeting language at
// all; the caller then falls back to an explicitly supplied index. An
// out-of-range clip number is a validation error.
func ResolveTargets(instruction string, scenes []domain.Scene) ([]int, bool, error) {
	total := len(scenes)
	lowered := strings.ToLower(instruction)

	if strings.Contains(lowered, "except") {
		excluded, ok, err := explicitTargets(lowered, total)
		if err != nil {
			return nil, true, err
		}
		if ok {
			return complement(excluded, total), true, nil
		}
	}

	if strings.Contains(lowered, "all clips") || strings.Contains(lowered, "every clip") || strings.Contains(lowered, "all of the clips") {
		return complement(nil, total), true, nil
	}

	if m := firstNRe.FindStringSubmatch(lowered); m != nil {
		n, err := countFromToken(m[1], total)
		if err != nil {
			return nil, true, err
		}
		return rangeSet(0, n), true, nil
	}
	if m := lastNRe.FindStringSubmatch(lowered); m != nil {
		n, err := countFromToken(m[1], total)
		if err != nil {
			return nil, true, err
		}
		return rangeSet(total-n, total), true, nil
	}
	if strings.Contains(lowered, "first clip") {
		return []int{0}, true, nil
	}
	if strings.Contains(lowered, "last clip") {
		return []int{total - 1}, true, nil
	}

	if targets, ok, err := explicitTargets(lowered, total); ok || err != nil {
		return targets, ok, err
	}

	if targets := segmentTargets(lowered, scenes); len(targets) > 0 {
		return targets, true, nil
	}

	return nil, false, nil
}

// explicitTargets handles "clip 3" and "clips 2 and 4" style references.
func explicitTargets(lowered string, total int) ([]int, bool, error) {
	m := clipListRe.FindStringSubmatch(lowered)
	if m == nil {
		return nil, false, nil
	}
	seen := make(map[int]struct{})
	var out []int
	for _, raw := range digitsRe.FindAllString(m[1], -1) {
		number, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		idx := number - 1
		if idx < 0 || idx >= total {
			return nil, true, fmt.Errorf("%w: clip %d out of range (job has %d clips)", domain.ErrValidation, number, total)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	sort.Ints(out)
	return out, true, nil
}

// segmentTargets matches song-structure words ("chorus", "verse") against the
// scene plan's segment labels.
func segmentTargets(lowered string, scenes []domain.Scene) []int {
	var out []int
	for _, scene := range scenes {
		if scene.Segment == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(scene.Segment)) {
			out = append(out, scene.Index)
		}
	}
	sort.Ints(out)
	return out
}

func countFromToken(token string, total int) (int, error) {
	n, err := strconv.Atoi(token)
	if err != nil {
		word, ok := wordNumbers[token]
		if !ok {
			return 0, fmt.Errorf("%w: unrecognized clip count %q", domain.ErrValidation, token)
		}
		n = word
	}
	if n < 1 || n > total {
		return 0, fmt.Errorf("%w: clip count %d out of range (job has %d clips)", domain.ErrValidation, n, total)
	}
	return n, nil
}

// dedupe normalizes a caller-supplied index list the way explicitTargets
// normalizes parsed ones: unique, ascending.
func dedupe(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	var out []int
	for _, idx := range indices {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func rangeSet(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func complement(excluded []int, total int) []int {
	skip := make(map[int]struct{}, len(excluded))
	for _, idx := range excluded {
		skip[idx] = struct{}{}
	}
	var out []int
	for i := 0; i < total; i++ {
		if _, ok := skip[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
