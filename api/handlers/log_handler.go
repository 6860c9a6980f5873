package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunepack-go/pkg/logger"
)

// LogHandler serves the per-day JSON event logs written by the
// event logger
type LogHandler struct {
	logsDir string
}

// NewLogHandler creates a new log handler
func NewLogHandler(logsDir string) *LogHandler {
	return &LogHandler{logsDir: logsDir}
}

var validCategories = map[logger.LogCategory]bool{
	logger.CategoryBatch: true,
	logger.CategoryError: true,
}

// GetCategories handles GET /api/v1/logs/categories
func (h *LogHandler) GetCategories(c *gin.Context) {
	categories := make([]string, 0, len(validCategories))
	for category := range validCategories {
		categories = append(categories, string(category))
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetLogs handles GET /api/v1/logs/:category
func (h *LogHandler) GetLogs(c *gin.Context) {
	category := logger.LogCategory(c.Param("category"))
	if !validCategories[category] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	date := time.Now()
	if dateStr := c.Query("date"); dateStr != "" {
		date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
			return
		}
	}

	entries, err := h.readEntries(category, date, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"date":     date.Format("2006-01-02"),
		"count":    len(entries),
		"entries":  entries,
	})
}

// readEntries returns the last limit JSON entries of one day's file.
// A missing file means no events that day, not an error.
func (h *LogHandler) readEntries(category logger.LogCategory, date time.Time, limit int) ([]map[string]interface{}, error) {
	path := filepath.Join(h.logsDir, fmt.Sprintf("%s-%s.log", category, date.Format("20060102")))

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if entries == nil {
		entries = []map[string]interface{}{}
	}
	return entries, nil
}
