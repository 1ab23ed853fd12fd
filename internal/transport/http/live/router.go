package livehttp

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Luigik28/rizzo-trading-agent/internal/agent"
	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
	"github.com/Luigik28/rizzo-trading-agent/internal/snapshot"
	"github.com/Luigik28/rizzo-trading-agent/internal/store/model"

	"github.com/gin-gonic/gin"
)

const (
	maxLogLineSize = 1024 * 1024
	maxListLimit   = 500
)

// RecordReader 由 sqlite.Recorder 实现。
type RecordReader interface {
	ListOperations(ctx context.Context, symbol string, limit int) ([]model.BotOperationModel, error)
	LastAccount(ctx context.Context) (*model.AccountSnapshotModel, error)
	ListErrors(ctx context.Context, limit int) ([]model.ErrorLogModel, error)
}

type SnapshotSource interface {
	Build(ctx context.Context, ticker string) (snapshot.MarketSnapshot, error)
}

// CycleView 由 agent.LastOutcome 实现。
type CycleView interface {
	Get() (agent.CycleResult, bool)
	Recent() []agent.CycleResult
}

// Router 暴露只读查询接口。
type Router struct {
	records   RecordReader
	snapshots SnapshotSource
	cycles    CycleView
	logPaths  map[string]string
	logNames  []string
	tickers   map[string]struct{}
}

func NewRouter(records RecordReader, snaps SnapshotSource, cycles CycleView, logPaths map[string]string, tickers []string) *Router {
	names := make([]string, 0, len(logPaths))
	for name, path := range logPaths {
		if strings.TrimSpace(path) == "" || strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	allowed := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			allowed[t] = struct{}{}
		}
	}
	return &Router{records: records, snapshots: snaps, cycles: cycles, logPaths: logPaths, logNames: names, tickers: allowed}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/cycles", r.handleCycles)
	group.GET("/cycles/last", r.handleLastCycle)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/errors", r.handleErrors)
	group.GET("/account", r.handleAccount)
	group.GET("/snapshots/:ticker", r.handleSnapshot)
	group.GET("/logs", r.handleLogs)
}

func (r *Router) handleCycles(c *gin.Context) {
	if r.cycles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle view unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": r.cycles.Recent()})
}

func (r *Router) handleLastCycle(c *gin.Context) {
	if r.cycles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle view unavailable"})
		return
	}
	last, ok := r.cycles.Get()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record store unavailable"})
		return
	}
	symbol := strings.TrimSpace(c.Query("symbol"))
	limit := parseLimit(c.DefaultQuery("limit", "50"), 50)
	ops, err := r.records.ListOperations(c.Request.Context(), symbol, limit)
	if err != nil {
		logger.Errorf("[api] list decisions failed symbol=%s err=%v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": ops})
}

func (r *Router) handleErrors(c *gin.Context) {
	if r.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record store unavailable"})
		return
	}
	limit := parseLimit(c.DefaultQuery("limit", "50"), 50)
	errs, err := r.records.ListErrors(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] list errors failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": errs})
}

func (r *Router) handleAccount(c *gin.Context) {
	if r.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "record store unavailable"})
		return
	}
	acct, err := r.records.LastAccount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if acct == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no account snapshot recorded"})
		return
	}
	c.JSON(http.StatusOK, acct)
}

// handleSnapshot 现场构建单个标的快照；format=text 时返回提示词中的文本形式。
func (r *Router) handleSnapshot(c *gin.Context) {
	if r.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot builder unavailable"})
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if _, ok := r.tickers[ticker]; len(r.tickers) > 0 && !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker not tradable: " + ticker})
		return
	}
	snap, err := r.snapshots.Build(c.Request.Context(), ticker)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, snapshot.ErrDataUnavailable) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if strings.EqualFold(c.Query("format"), "text") {
		c.String(http.StatusOK, snapshot.Render(snap))
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleLogs(c *gin.Context) {
	if len(r.logNames) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no log files configured"})
		return
	}
	name := strings.TrimSpace(c.DefaultQuery("name", ""))
	path := ""
	if name != "" {
		path = strings.TrimSpace(r.logPaths[name])
	}
	if path == "" {
		name = r.logNames[0]
		path = r.logPaths[name]
	}
	limit := parseLimit(c.DefaultQuery("limit", "200"), 200)
	lines, err := readLastLines(path, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "path": path})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      name,
		"path":      path,
		"lines":     lines,
		"available": r.logNames,
	})
}

func parseLimit(raw string, def int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func readLastLines(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLogLineSize)
	lines := make([]string, 0, limit)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
