package core

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// App bundles the dependencies every handler needs behind a single receiver,
// since this surface has no per-request auth state to thread through.
type App struct {
	cfg       Config
	mirror    *Mirror
	rankCache *RankCache
}

// NewRouter constructs the Gin engine with every API route wired.
func NewRouter(cfg Config, mirror *Mirror, rankCache *RankCache) *gin.Engine {
	app := &App{cfg: cfg, mirror: mirror, rankCache: rankCache}

	r := gin.Default()
	r.Use(OriginRefererMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/jobs", app.postJob)
	r.GET("/jobs/:id", app.getJob)
	r.GET("/jobs", app.listJobs)
	r.PUT("/jobs/:id", app.putJob)
	r.DELETE("/jobs/:id", app.deleteJob)

	r.POST("/users", app.postUser)
	r.GET("/users", app.listUsers)

	r.POST("/contests", app.postContest)
	r.GET("/contests", app.listContests)
	r.GET("/contests/:id", app.getContest)
	r.GET("/contests/:id/ranklist", app.getRanklist)

	// DO NOT REMOVE: operational escape hatch used by the grading harness to
	// tear the process down between runs.
	r.POST("/internal/exit", func(c *gin.Context) {
		c.Status(http.StatusOK)
		os.Exit(0)
	})

	return r
}

// postJobBody is the POST /jobs request shape.
type postJobBody struct {
	SourceCode string `json:"source_code"`
	Language   string `json:"language"`
	UserID     int    `json:"user_id"`
	ContestID  int    `json:"contest_id"`
	ProblemID  int    `json:"problem_id"`
}

func (a *App) postJob(c *gin.Context) {
	var body postJobBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, ErrInvalidArgument, "invalid request body")
		return
	}

	if _, ok := a.mirror.GetUser(body.UserID); !ok {
		respondError(c, ErrNotFound, "User "+strconv.Itoa(body.UserID)+" not found.")
		return
	}

	if body.ContestID != 0 {
		contest, ok := a.mirror.GetContest(body.ContestID)
		if !ok {
			respondError(c, ErrNotFound, "Contest "+strconv.Itoa(body.ContestID)+" not found.")
			return
		}
		if !contest.hasUser(body.UserID) {
			respondError(c, ErrInvalidArgument, "User not in contest")
			return
		}
		if !contest.hasProblem(body.ProblemID) {
			respondError(c, ErrInvalidArgument, "Problem not in contest")
			return
		}
		now := nowStamp()
		if now < contest.From || now > contest.To {
			respondError(c, ErrInvalidArgument, "Time not in contest")
			return
		}
		if contest.SubmissionLimit != 0 {
			count := 0
			for _, job := range a.mirror.SnapshotJobs() {
				if job.Submission.UserID == body.UserID && job.Submission.ProblemID == body.ProblemID && job.Submission.ContestID == body.ContestID {
					count++
				}
			}
			if count >= contest.SubmissionLimit {
				respondError(c, ErrRateLimit, "Too much submission")
				return
			}
		}
	}

	if _, ok := a.cfg.FindLanguage(body.Language); !ok {
		respondError(c, ErrNotFound, "Language "+body.Language+" not found.")
		return
	}
	problem, ok := a.cfg.FindProblem(body.ProblemID)
	if !ok {
		respondError(c, ErrNotFound, "Problem "+strconv.Itoa(body.ProblemID)+" not found.")
		return
	}

	cases := make([]Case, len(problem.Cases)+1)
	for i := range cases {
		cases[i] = Case{ID: i, Result: CaseWaiting}
	}
	now := nowStamp()
	job := Job{
		CreatedTime: now,
		UpdatedTime: now,
		Submission: Submission{
			SourceCode: body.SourceCode,
			Language:   body.Language,
			UserID:     body.UserID,
			ContestID:  body.ContestID,
			ProblemID:  body.ProblemID,
		},
		State:  StateQueueing,
		Result: ResultWaiting,
		Cases:  cases,
	}

	inserted, err := a.mirror.InsertJob(c.Request.Context(), job)
	if err != nil {
		respondError(c, ErrExternal, "SQL error")
		return
	}
	c.JSON(http.StatusOK, inserted)
}

func (a *App) getJob(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, ErrInvalidArgument, "invalid job id")
		return
	}
	job, ok := a.mirror.GetJob(id)
	if !ok {
		respondError(c, ErrNotFound, "Job "+strconv.Itoa(id)+" not found.")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (a *App) listJobs(c *gin.Context) {
	jobs := a.mirror.SnapshotJobs()

	if v := c.Query("user_id"); v != "" {
		id, _ := strconv.Atoi(v)
		jobs = filterJobs(jobs, func(j Job) bool { return j.Submission.UserID == id })
	}
	if v := c.Query("problem_id"); v != "" {
		id, _ := strconv.Atoi(v)
		jobs = filterJobs(jobs, func(j Job) bool { return j.Submission.ProblemID == id })
	}
	if v := c.Query("contest_id"); v != "" {
		id, _ := strconv.Atoi(v)
		jobs = filterJobs(jobs, func(j Job) bool { return j.Submission.ContestID == id })
	}
	if v := c.Query("language"); v != "" {
		jobs = filterJobs(jobs, func(j Job) bool { return j.Submission.Language == v })
	}
	if v := c.Query("from"); v != "" {
		jobs = filterJobs(jobs, func(j Job) bool { return j.CreatedTime >= v })
	}
	if v := c.Query("to"); v != "" {
		jobs = filterJobs(jobs, func(j Job) bool { return j.CreatedTime <= v })
	}
	if v := c.Query("state"); v != "" {
		jobs = filterJobs(jobs, func(j Job) bool { return string(j.State) == v })
	}
	if v := c.Query("result"); v != "" {
		jobs = filterJobs(jobs, func(j Job) bool { return string(j.Result) == v })
	}
	if v := c.Query("user_name"); v != "" {
		user, ok := a.mirror.FindUserByName(v)
		if !ok {
			jobs = nil
		} else {
			jobs = filterJobs(jobs, func(j Job) bool { return j.Submission.UserID == user.ID })
		}
	}

	if jobs == nil {
		jobs = []Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func filterJobs(jobs []Job, keep func(Job) bool) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if keep(j) {
			out = append(out, j)
		}
	}
	return out
}

func (a *App) putJob(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, ErrInvalidArgument, "invalid job id")
		return
	}
	job, ok := a.mirror.GetJob(id)
	if !ok {
		respondError(c, ErrNotFound, "Job "+strconv.Itoa(id)+" not found.")
		return
	}
	if job.State != StateFinished {
		respondError(c, ErrInvalidState, "Job "+strconv.Itoa(id)+" not finished.")
		return
	}

	for i := range job.Cases {
		job.Cases[i].Result = CaseWaiting
		job.Cases[i].Time = 0
		job.Cases[i].Memory = 0
		job.Cases[i].Info = ""
	}
	job.UpdatedTime = nowStamp()
	job.State = StateQueueing
	job.Result = ResultWaiting
	job.Score = 0
	job.claimed = false // let the producer pick the job up again

	if err := a.mirror.UpdateJob(c.Request.Context(), job); err != nil {
		respondError(c, ErrExternal, "SQL error")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (a *App) deleteJob(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, ErrInvalidArgument, "invalid job id")
		return
	}
	job, ok := a.mirror.GetJob(id)
	if !ok {
		respondError(c, ErrNotFound, "Job "+strconv.Itoa(id)+" not found.")
		return
	}
	if job.State != StateQueueing {
		respondError(c, ErrInvalidState, "Job "+strconv.Itoa(id)+" not queueing.")
		return
	}
	if err := a.mirror.DeleteJob(c.Request.Context(), id); err != nil {
		respondError(c, ErrExternal, "SQL error")
		return
	}
	c.Status(http.StatusOK)
}

type postUserBody struct {
	ID   *int   `json:"id"`
	Name string `json:"name"`
}

func (a *App) postUser(c *gin.Context) {
	var body postUserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, ErrInvalidArgument, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		respondError(c, ErrInvalidArgument, "user name required")
		return
	}

	user, err := a.mirror.UpsertUser(c.Request.Context(), body.ID, body.Name)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			respondError(c, apiErr.Code, apiErr.Message)
			return
		}
		respondError(c, ErrExternal, "SQL error")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *App) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, a.mirror.ListUsers())
}

type postContestBody struct {
	ID              *int   `json:"id"`
	Name            string `json:"name"`
	From            string `json:"from"`
	To              string `json:"to"`
	ProblemIDs      []int  `json:"problem_ids"`
	UserIDs         []int  `json:"user_ids"`
	SubmissionLimit int    `json:"submission_limit"`
}

func (a *App) postContest(c *gin.Context) {
	var body postContestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, ErrInvalidArgument, "invalid request body")
		return
	}
	if body.From >= body.To {
		respondError(c, ErrInvalidArgument, "Invalid argument time.")
		return
	}

	seenUsers := make(map[int]bool, len(body.UserIDs))
	for _, uid := range body.UserIDs {
		if seenUsers[uid] {
			respondError(c, ErrInvalidArgument, "Invalid argument user.")
			return
		}
		seenUsers[uid] = true
		if _, ok := a.mirror.GetUser(uid); !ok {
			respondError(c, ErrNotFound, "User "+strconv.Itoa(uid)+" not found.")
			return
		}
	}

	seenProblems := make(map[int]bool, len(body.ProblemIDs))
	for _, pid := range body.ProblemIDs {
		if seenProblems[pid] {
			respondError(c, ErrInvalidArgument, "Invalid argument problem.")
			return
		}
		seenProblems[pid] = true
		if _, ok := a.cfg.FindProblem(pid); !ok {
			respondError(c, ErrNotFound, "Problem "+strconv.Itoa(pid)+" not found.")
			return
		}
	}

	contest := Contest{
		Name:            body.Name,
		From:            body.From,
		To:              body.To,
		ProblemIDs:      body.ProblemIDs,
		UserIDs:         body.UserIDs,
		SubmissionLimit: body.SubmissionLimit,
	}

	result, err := a.mirror.UpsertContest(c.Request.Context(), body.ID, contest)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			respondError(c, apiErr.Code, apiErr.Message)
			return
		}
		respondError(c, ErrExternal, "SQL error")
		return
	}
	if a.rankCache != nil {
		a.rankCache.InvalidateContest(c.Request.Context(), result.ID)
	}
	c.JSON(http.StatusOK, result)
}

func (a *App) listContests(c *gin.Context) {
	c.JSON(http.StatusOK, a.mirror.ListContests())
}

func (a *App) getContest(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, ErrInvalidArgument, "invalid contest id")
		return
	}
	if id == 0 {
		respondError(c, ErrInvalidArgument, "Invalid contest id.")
		return
	}
	contest, ok := a.mirror.GetContest(id)
	if !ok {
		respondError(c, ErrNotFound, "Contest "+strconv.Itoa(id)+" not found.")
		return
	}
	c.JSON(http.StatusOK, contest)
}

func (a *App) getRanklist(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, ErrInvalidArgument, "invalid contest id")
		return
	}
	scoringRule := c.Query("scoring_rule")
	tieBreaker := c.Query("tie_breaker")

	if list, hit := a.rankCache.Get(c.Request.Context(), id, scoringRule, tieBreaker); hit {
		c.JSON(http.StatusOK, list)
		return
	}

	list, err := Ranklist(a.cfg, a.mirror, id, scoringRule, tieBreaker)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			respondError(c, apiErr.Code, apiErr.Message)
			return
		}
		respondError(c, ErrExternal, err.Error())
		return
	}
	a.rankCache.Set(c.Request.Context(), id, scoringRule, tieBreaker, list)
	c.JSON(http.StatusOK, list)
}
