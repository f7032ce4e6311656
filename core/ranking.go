package core

import (
	"sort"
)

// UserRank is one row of a ranklist response.
type UserRank struct {
	User   User      `json:"user"`
	Rank   int       `json:"rank"`
	Scores []float64 `json:"scores"`
}

// fullUserInfo accumulates one user's per-problem submissions before scoring.
type fullUserInfo struct {
	userID   int
	problems [][]Job // one slice per problem, in config.Problems order
	scores   []float64
	times    []string
	count    int
}

// Ranklist computes the ranklist for contestID (0 means the global list over
// every configured problem). scoringRule "latest" takes each problem's most
// recent submission; any other value, including "", uses "highest". tieBreaker of "" applies no
// tie-break (ties keep a stable order at the same rank).
//
// Jobs considered for a real contest (contestID > 0) are filtered to
// submissions actually made under that contest, not merely to submissions by
// a contest participant on a contest problem: a submission made outside the
// contest window never counts toward its ranklist.
func Ranklist(cfg Config, mirror *Mirror, contestID int, scoringRule, tieBreaker string) ([]UserRank, error) {
	users := mirror.ListUsers()
	jobs := mirror.SnapshotJobs()

	var problemIDs []int
	var userIDs []int
	filterByContest := false
	if contestID == 0 {
		for _, p := range cfg.Problems {
			problemIDs = append(problemIDs, p.ID)
		}
		for _, u := range users {
			userIDs = append(userIDs, u.ID)
		}
	} else {
		contest, ok := mirror.GetContest(contestID)
		if !ok {
			return nil, NewAPIError(ErrNotFound, "Contest not found.")
		}
		problemIDs = contest.ProblemIDs
		userIDs = contest.UserIDs
		filterByContest = true
	}

	full := make([]fullUserInfo, 0, len(userIDs))
	for _, uid := range userIDs {
		info := fullUserInfo{userID: uid}
		for _, pid := range problemIDs {
			var matched []Job
			for _, j := range jobs {
				if j.Submission.ProblemID != pid || j.Submission.UserID != uid {
					continue
				}
				if filterByContest && j.Submission.ContestID != contestID {
					continue
				}
				matched = append(matched, j)
			}
			info.problems = append(info.problems, matched)
		}
		full = append(full, info)
	}

	ranked := make([]fullUserInfo, len(full))
	for i, u := range full {
		ranked[i] = scoreUser(scoringRule, u)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(tieBreaker, ranked[i], ranked[j])
	})

	userByID := make(map[int]User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	out := make([]UserRank, 0, len(ranked))
	rank := 1
	for i, u := range ranked {
		if i > 0 && rankCompare(tieBreaker, ranked[i-1], u) != 0 {
			rank = i + 1
		}
		out = append(out, UserRank{User: userByID[u.userID], Rank: rank, Scores: u.scores})
	}
	return out, nil
}

// scoreUser fills in scores/times/count for one problem set per scoringRule:
// "latest" takes the most recent submission's score; anything else (the
// default, "highest") takes the best-scoring submission.
func scoreUser(scoringRule string, u fullUserInfo) fullUserInfo {
	out := u
	out.scores = make([]float64, 0, len(u.problems))
	out.times = make([]string, 0, len(u.problems))
	out.count = 0

	for _, jobs := range u.problems {
		if len(jobs) == 0 {
			out.scores = append(out.scores, 0)
			out.times = append(out.times, "")
			continue
		}
		out.count += len(jobs)

		var chosen Job
		if scoringRule == "latest" {
			chosen = jobs[len(jobs)-1]
		} else {
			chosen = jobs[0]
			for _, j := range jobs[1:] {
				if j.Score > chosen.Score {
					chosen = j
				}
			}
		}
		out.scores = append(out.scores, chosen.Score)
		out.times = append(out.times, chosen.CreatedTime)
	}
	return out
}

// rankLess reports whether a ranks strictly ahead of b: higher total score
// first, then tieBreaker as the tie-break.
func rankLess(tieBreaker string, a, b fullUserInfo) bool {
	return rankCompare(tieBreaker, a, b) < 0
}

// rankCompare returns -1 if a ranks ahead of b, 1 if behind, 0 if tied.
func rankCompare(tieBreaker string, a, b fullUserInfo) int {
	aTotal, bTotal := total(a.scores), total(b.scores)
	if aTotal != bTotal {
		if aTotal > bTotal {
			return -1
		}
		return 1
	}
	switch tieBreaker {
	case "submission_time":
		at, bt := earliestTime(a.times), earliestTime(b.times)
		if at == bt {
			return 0
		}
		if at < bt {
			return -1
		}
		return 1
	case "submission_count":
		if a.count == b.count {
			return 0
		}
		if a.count < b.count {
			return -1
		}
		return 1
	case "user_id":
		if a.userID == b.userID {
			return 0
		}
		if a.userID < b.userID {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func total(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum
}

// earliestTime takes the lexicographic minimum over times, applying an
// empty-string-sorts-last convention by substituting a sentinel that
// string-compares after any real timestamp.
func earliestTime(times []string) string {
	min := ""
	for _, t := range times {
		if t == "" {
			t = "9"
		}
		if min == "" || t < min {
			min = t
		}
	}
	if min == "" {
		min = "9"
	}
	return min
}
