package core

import "testing"

func TestScoreUserLatestTakesMostRecentSubmission(t *testing.T) {
	u := fullUserInfo{
		userID: 1,
		problems: [][]Job{
			{
				{Score: 40, CreatedTime: "2026-01-01T00:00:00.000Z"},
				{Score: 10, CreatedTime: "2026-01-02T00:00:00.000Z"},
			},
			nil,
		},
	}
	out := scoreUser("latest", u)
	if len(out.scores) != 2 || out.scores[0] != 10 || out.scores[1] != 0 {
		t.Fatalf("unexpected scores: %v", out.scores)
	}
	if out.count != 2 {
		t.Fatalf("count = %d, want 2", out.count)
	}
	if out.times[1] != "" {
		t.Fatalf("empty problem bucket should have an empty time, got %q", out.times[1])
	}
}

func TestScoreUserHighestTakesBestSubmission(t *testing.T) {
	u := fullUserInfo{
		problems: [][]Job{
			{
				{Score: 40, CreatedTime: "2026-01-01T00:00:00.000Z"},
				{Score: 90, CreatedTime: "2026-01-02T00:00:00.000Z"},
				{Score: 10, CreatedTime: "2026-01-03T00:00:00.000Z"},
			},
		},
	}
	out := scoreUser("highest", u)
	if out.scores[0] != 90 {
		t.Fatalf("scores[0] = %v, want 90", out.scores[0])
	}
}

func TestRankCompareOrdersByTotalScoreFirst(t *testing.T) {
	a := fullUserInfo{scores: []float64{100}}
	b := fullUserInfo{scores: []float64{50}}
	if rankCompare("", a, b) != -1 {
		t.Fatal("higher score should rank ahead (-1)")
	}
	if rankCompare("", b, a) != 1 {
		t.Fatal("lower score should rank behind (1)")
	}
}

func TestRankCompareSubmissionTimeTieBreak(t *testing.T) {
	earlier := fullUserInfo{scores: []float64{50}, times: []string{"2026-01-01T00:00:00.000Z"}}
	later := fullUserInfo{scores: []float64{50}, times: []string{"2026-01-02T00:00:00.000Z"}}
	if rankCompare("submission_time", earlier, later) != -1 {
		t.Fatal("earlier last-submission time should rank ahead on a tie")
	}
}

func TestRankCompareSubmissionTimeEmptyTimeSortsLast(t *testing.T) {
	hasTime := fullUserInfo{scores: []float64{50}, times: []string{"2026-01-01T00:00:00.000Z"}}
	noTime := fullUserInfo{scores: []float64{50}, times: []string{""}}
	if rankCompare("submission_time", hasTime, noTime) != -1 {
		t.Fatal("a user with no submissions should rank behind one with a real timestamp")
	}
}

func TestRankCompareSubmissionCountTieBreak(t *testing.T) {
	fewer := fullUserInfo{scores: []float64{50}, count: 1}
	more := fullUserInfo{scores: []float64{50}, count: 5}
	if rankCompare("submission_count", fewer, more) != -1 {
		t.Fatal("fewer submissions should rank ahead on a submission_count tie-break")
	}
}

func TestRankCompareUserIDTieBreak(t *testing.T) {
	a := fullUserInfo{scores: []float64{50}, userID: 1}
	b := fullUserInfo{scores: []float64{50}, userID: 2}
	if rankCompare("user_id", a, b) != -1 {
		t.Fatal("lower user id should rank ahead on a user_id tie-break")
	}
}

func TestRankCompareNoTieBreakerIsStableZero(t *testing.T) {
	a := fullUserInfo{scores: []float64{50}, userID: 1}
	b := fullUserInfo{scores: []float64{50}, userID: 2}
	if rankCompare("", a, b) != 0 {
		t.Fatal("with no tie-breaker, tied totals should compare equal")
	}
}

func TestEarliestTimeEmptySentinelSortsAfterRealTimestamps(t *testing.T) {
	if got := earliestTime([]string{"2026-01-01T00:00:00.000Z", ""}); got != "2026-01-01T00:00:00.000Z" {
		t.Fatalf("earliestTime = %q, want the real timestamp ahead of the empty-time sentinel", got)
	}
	if got := earliestTime([]string{"2026-01-01T00:00:00.000Z", "2026-02-01T00:00:00.000Z"}); got != "2026-01-01T00:00:00.000Z" {
		t.Fatalf("earliestTime = %q, want the earlier real timestamp", got)
	}
}

func TestRankCompareSubmissionTimeUsesMinAcrossProblemsNotMax(t *testing.T) {
	// Per-user times are a slice over problems; the tie-break must compare
	// the earliest (minimum) submission time across problems, not the latest.
	a := fullUserInfo{scores: []float64{50}, times: []string{"2026-01-03T00:00:00.000Z", "2026-01-01T00:00:00.000Z"}}
	b := fullUserInfo{scores: []float64{50}, times: []string{"2026-01-02T00:00:00.000Z", "2026-01-02T00:00:00.000Z"}}
	if rankCompare("submission_time", a, b) != -1 {
		t.Fatal("a's earliest time (01-01) precedes b's earliest time (01-02), so a should rank ahead")
	}
	if rankCompare("submission_time", b, a) != 1 {
		t.Fatal("b's earliest time (01-02) is later than a's (01-01), so b should rank behind")
	}
}

func TestTotalSumsAllScores(t *testing.T) {
	if got := total([]float64{10, 20, 30.5}); got != 60.5 {
		t.Fatalf("total = %v, want 60.5", got)
	}
	if got := total(nil); got != 0 {
		t.Fatalf("total(nil) = %v, want 0", got)
	}
}
