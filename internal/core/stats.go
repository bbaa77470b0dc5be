package core

import (
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/dkeye/Estimate/internal/domain"
)

const (
	comboSeparator = " + "
	maxCombos      = 10
)

type TemplateStats struct {
	TotalVotes   int            `json:"totalVotes"`
	Distribution map[string]int `json:"distribution"`
	Average      *float64       `json:"average"`
	Median       *float64       `json:"median"`
}

type Combination struct {
	Combo string `json:"combo"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalParticipants int                                    `json:"totalParticipants"`
	ByTemplate        map[domain.TemplateID]TemplateStats    `json:"byTemplate"`
	Combinations      []Combination                          `json:"combinations"`
	Votes             map[domain.ParticipantID]domain.Ballot `json:"votes"`
}

// ComputeStats aggregates a round's votes. order fixes the participant
// iteration order, which decides combination ties (first seen wins);
// voters missing from order follow in ascending id order. Combinations
// are nil for single-template rounds, Votes is nil unless the round is
// revealed.
func ComputeStats(round *domain.VotingRound, order []domain.ParticipantID, totalParticipants int) Stats {
	voters := voterOrder(round, order)

	st := Stats{
		TotalParticipants: totalParticipants,
		ByTemplate:        make(map[domain.TemplateID]TemplateStats, len(round.TemplateIDs)),
	}
	for _, tid := range round.TemplateIDs {
		values := make([]string, 0, len(voters))
		for _, pid := range voters {
			if v, ok := round.Votes[pid][tid]; ok {
				values = append(values, v.Value)
			}
		}
		st.ByTemplate[tid] = templateStats(values)
	}

	if len(round.TemplateIDs) > 1 {
		st.Combinations = combinations(round, voters)
	}
	if round.IsRevealed() {
		st.Votes = round.Clone().Votes
	}
	return st
}

func voterOrder(round *domain.VotingRound, order []domain.ParticipantID) []domain.ParticipantID {
	out := make([]domain.ParticipantID, 0, len(round.Votes))
	seen := make(map[domain.ParticipantID]struct{}, len(round.Votes))
	for _, pid := range order {
		if _, ok := round.Votes[pid]; ok {
			out = append(out, pid)
			seen[pid] = struct{}{}
		}
	}
	var rest []domain.ParticipantID
	for pid := range round.Votes {
		if _, ok := seen[pid]; !ok {
			rest = append(rest, pid)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func templateStats(values []string) TemplateStats {
	ts := TemplateStats{
		TotalVotes:   len(values),
		Distribution: make(map[string]int, len(values)),
	}
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		ts.Distribution[v]++
		if f, ok := numeric(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return ts
	}

	var sum float64
	for _, f := range nums {
		sum += f
	}
	avg := roundTenth(sum / float64(len(nums)))
	ts.Average = &avg

	sort.Float64s(nums)
	mid := len(nums) / 2
	med := nums[mid]
	if len(nums)%2 == 0 {
		med = (nums[mid-1] + nums[mid]) / 2
	}
	ts.Median = &med
	return ts
}

func numeric(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// roundTenth rounds half up to one decimal place.
func roundTenth(f float64) float64 {
	return math.Floor(f*10+0.5) / 10
}

func combinations(round *domain.VotingRound, voters []domain.ParticipantID) []Combination {
	var combos []Combination
	index := make(map[string]int)
	parts := make([]string, len(round.TemplateIDs))
	for _, pid := range voters {
		ballot := round.Votes[pid]
		complete := true
		for i, tid := range round.TemplateIDs {
			v, ok := ballot[tid]
			if !ok {
				complete = false
				break
			}
			parts[i] = v.Value
		}
		if !complete {
			continue
		}
		key := strings.Join(parts, comboSeparator)
		if i, ok := index[key]; ok {
			combos[i].Count++
			continue
		}
		index[key] = len(combos)
		combos = append(combos, Combination{Combo: key, Count: 1})
	}

	sort.SliceStable(combos, func(i, j int) bool { return combos[i].Count > combos[j].Count })
	if len(combos) > maxCombos {
		combos = combos[:maxCombos]
	}
	if combos == nil {
		combos = []Combination{}
	}
	return combos
}
