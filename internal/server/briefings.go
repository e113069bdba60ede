package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arovi-health/arovi/internal/briefing"
	"github.com/arovi-health/arovi/internal/runtime"
	"github.com/arovi-health/arovi/internal/store"
	"github.com/arovi-health/arovi/session"
)

// sessionTTL bounds how long a run's follow-up index stays queryable.
const sessionTTL = 24 * time.Hour

// BriefingsHandler serves subscriptions, runs, and briefing documents.
type BriefingsHandler struct {
	Store    *store.Store
	Engine   *briefing.Engine
	Sessions session.Store
	Logger   *log.Logger
}

func (h *BriefingsHandler) Register(api *echo.Group, secret []byte) {
	subs := api.Group("/subscriptions")
	subs.Use(runtime.EchoAuthMiddleware(secret))
	subs.POST("", h.createSubscription)
	subs.GET("", h.listSubscriptions)
	subs.GET("/:id", h.getSubscription)
	subs.PUT("/:id/schedule", h.updateSchedule)
	subs.DELETE("/:id", h.deleteSubscription)
	subs.POST("/:id/briefings", h.triggerRun)
	subs.GET("/:id/briefings/latest", h.latestBriefing)
	subs.GET("/:id/runs", h.listRuns)

	runs := api.Group("/runs")
	runs.Use(runtime.EchoAuthMiddleware(secret))
	runs.GET("/:id", h.getRun)
	runs.GET("/:id/briefing", h.getBriefing)
	runs.GET("/:id/search", h.searchRun)
}

func userID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}

func (h *BriefingsHandler) createSubscription(c echo.Context) error {
	var req CreateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.City == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "city required")
	}
	if req.ScheduleCron == "" {
		req.ScheduleCron = "@daily"
	}
	id, err := h.Store.CreateSubscription(c.Request().Context(), userID(c), req.City, req.State, req.Country, req.ScheduleCron)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *BriefingsHandler) listSubscriptions(c echo.Context) error {
	subs, err := h.Store.ListSubscriptions(c.Request().Context(), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, subs)
}

func (h *BriefingsHandler) getSubscription(c echo.Context) error {
	sub, err := h.Store.GetSubscription(c.Request().Context(), c.Param("id"), userID(c))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *BriefingsHandler) updateSchedule(c echo.Context) error {
	var req UpdateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ScheduleCron == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "schedule_cron required")
	}
	if err := h.Store.UpdateSubscriptionCron(c.Request().Context(), c.Param("id"), userID(c), req.ScheduleCron); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *BriefingsHandler) deleteSubscription(c echo.Context) error {
	if err := h.Store.DeleteSubscription(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// triggerRun starts one pipeline execution for the subscription and returns
// immediately; progress is polled through the run endpoints.
func (h *BriefingsHandler) triggerRun(c echo.Context) error {
	sub, err := h.Store.GetSubscription(c.Request().Context(), c.Param("id"), userID(c))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req TriggerRunRequest
	_ = c.Bind(&req)

	runID, err := h.Store.CreateRun(c.Request().Context(), sub.ID, store.RunStatusRunning)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	go h.execute(runID, sub, req.Date)

	return c.JSON(http.StatusAccepted, IDResponse{ID: runID})
}

// execute runs the pipeline for one run row and persists the outcome.
func (h *BriefingsHandler) execute(runID string, sub store.Subscription, date string) {
	ctx := context.Background()
	res, err := h.Engine.Run(ctx, briefing.Request{
		City:    sub.City,
		State:   sub.State,
		Country: sub.Country,
		Date:    date,
	})
	if err != nil {
		msg := err.Error()
		if ferr := h.Store.FinishRun(ctx, runID, store.RunStatusFailed, false, nil, &msg); ferr != nil {
			h.Logger.Printf("run %s: recording failure: %v", runID, ferr)
		}
		return
	}

	metrics, _ := json.Marshal(res.Summary)
	if err := h.Store.FinishRun(ctx, runID, store.RunStatusSucceeded, res.Degraded, metrics, nil); err != nil {
		h.Logger.Printf("run %s: recording completion: %v", runID, err)
	}
	if _, err := h.Store.InsertBriefing(ctx, runID, res.Briefing, metrics); err != nil {
		h.Logger.Printf("run %s: persisting briefing: %v", runID, err)
	}

	// index the run's items for follow-up search and keep the state around
	sess, err := h.Sessions.EnsureSession(runID, sessionTTL)
	if err != nil {
		h.Logger.Printf("run %s: session: %v", runID, err)
		return
	}
	if err := sess.IndexItems(briefing.TaggedItems(res.State)); err != nil {
		h.Logger.Printf("run %s: indexing items: %v", runID, err)
	}
	if err := sess.SaveState(res.State); err != nil {
		h.Logger.Printf("run %s: saving state: %v", runID, err)
	}
}

func (h *BriefingsHandler) authorizeRun(c echo.Context, runID string) (store.Run, error) {
	run, err := h.Store.GetRun(c.Request().Context(), runID)
	if err == sql.ErrNoRows {
		return run, echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return run, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.Store.GetSubscription(c.Request().Context(), run.SubscriptionID, userID(c)); err != nil {
		return run, echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return run, nil
}

func (h *BriefingsHandler) getRun(c echo.Context) error {
	run, err := h.authorizeRun(c, c.Param("id"))
	if err != nil {
		return err
	}
	resp := RunResponse{
		ID:        run.ID,
		Status:    run.Status,
		Degraded:  run.Degraded,
		StartedAt: run.StartedAt.Format(time.RFC3339),
	}
	if run.Error.Valid {
		resp.Error = run.Error.String
	}
	if run.FinishedAt.Valid {
		resp.FinishedAt = run.FinishedAt.Time.Format(time.RFC3339)
	}
	if len(run.Metrics) > 0 {
		var m interface{}
		if json.Unmarshal(run.Metrics, &m) == nil {
			resp.Metrics = m
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BriefingsHandler) listRuns(c echo.Context) error {
	if _, err := h.Store.GetSubscription(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	runs, err := h.Store.ListRuns(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		r := RunResponse{ID: run.ID, Status: run.Status, Degraded: run.Degraded, StartedAt: run.StartedAt.Format(time.RFC3339)}
		if run.FinishedAt.Valid {
			r.FinishedAt = run.FinishedAt.Time.Format(time.RFC3339)
		}
		out = append(out, r)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *BriefingsHandler) getBriefing(c echo.Context) error {
	if _, err := h.authorizeRun(c, c.Param("id")); err != nil {
		return err
	}
	doc, err := h.Store.GetBriefingByRun(c.Request().Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "briefing not ready")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, briefingResponse(doc))
}

func (h *BriefingsHandler) latestBriefing(c echo.Context) error {
	if _, err := h.Store.GetSubscription(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	doc, err := h.Store.LatestBriefing(c.Request().Context(), c.Param("id"))
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "no briefings yet")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, briefingResponse(doc))
}

// searchRun answers follow-up questions against the run's indexed items.
func (h *BriefingsHandler) searchRun(c echo.Context) error {
	if _, err := h.authorizeRun(c, c.Param("id")); err != nil {
		return err
	}
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	sess, err := h.Sessions.GetSession(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sess == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run session expired")
	}
	hits, err := sess.Search(q, 5)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hits)
}

func briefingResponse(doc store.Briefing) BriefingResponse {
	resp := BriefingResponse{
		ID:        doc.ID,
		RunID:     doc.RunID,
		Markdown:  doc.Markdown,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
	}
	if len(doc.Summary) > 0 {
		var s interface{}
		if json.Unmarshal(doc.Summary, &s) == nil {
			resp.Summary = s
		}
	}
	return resp
}
