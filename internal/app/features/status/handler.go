// internal/app/features/status/handler.go
package status

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	uierrors "github.com/dalemusser/dashhub/internal/app/features/errors"
	"github.com/dalemusser/dashhub/internal/app/system/directory"
	"github.com/dalemusser/dashhub/internal/app/system/jsonio"
	"github.com/dalemusser/dashhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Database is the part of *mongo.Database the status page reads.
type Database interface {
	ListCollectionNames(ctx context.Context, filter interface{}, opts ...*options.ListCollectionsOptions) ([]string, error)
}

// Pinger checks connectivity. *mongo.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// Counter reports directory counts. *directory.Directory satisfies it.
type Counter interface {
	Summary(ctx context.Context) (directory.Summary, error)
}

// Handler serves GET /system/status.
type Handler struct {
	Client      Pinger
	DB          Database
	Users       Counter
	Started     time.Time
	MailEnabled bool
	Log         *zap.Logger
	ErrLog      *uierrors.ErrorLogger

	now func() time.Time
}

// NewHandler constructs a status Handler. started is the process start time.
func NewHandler(client Pinger, db Database, users Counter, started time.Time, mailEnabled bool, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Client:      client,
		DB:          db,
		Users:       users,
		Started:     started,
		MailEnabled: mailEnabled,
		Log:         logger,
		ErrLog:      errLog,
		now:         time.Now,
	}
}

type statusResponse struct {
	System   systemStatus      `json:"system"`
	Database databaseStatus    `json:"database"`
	Users    userStats         `json:"users"`
	Services map[string]string `json:"services"`
}

type systemStatus struct {
	Status        string      `json:"status"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds int64       `json:"uptimeSeconds"`
	Memory        memoryStats `json:"memory"`
}

// memoryStats is heap usage in MiB.
type memoryStats struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}

type databaseStatus struct {
	Status      string `json:"status"`
	Collections int    `json:"collections"`
}

type userStats struct {
	Total        int64  `json:"total"`
	Active       int64  `json:"active"`
	Inactive     int64  `json:"inactive"`
	ActivityRate string `json:"activityRate"`
}

// Serve reports process, database and directory health. Counts exclude
// deleted users.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "system status")
	defer cancel()

	db := databaseStatus{Status: "Connected"}
	pingCtx, pingCancel := context.WithTimeout(ctx, timeouts.Ping())
	err := h.Client.Ping(pingCtx, readpref.Primary())
	pingCancel()
	if err != nil {
		h.Log.Warn("status: mongo ping failed", zap.Error(err))
		db.Status = "Disconnected"
	} else if names, err := h.DB.ListCollectionNames(ctx, bson.D{}); err != nil {
		h.Log.Warn("status: list collections failed", zap.Error(err))
	} else {
		db.Collections = len(names)
	}

	sum, err := h.Users.Summary(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, "system status", err)
		return
	}

	up := h.now().Sub(h.Started)
	if up < 0 {
		up = 0
	}

	email := "Disabled"
	if h.MailEnabled {
		email = "Running"
	}

	jsonio.Write(w, http.StatusOK, statusResponse{
		System: systemStatus{
			Status:        "Online",
			Uptime:        formatUptime(up),
			UptimeSeconds: int64(up / time.Second),
			Memory:        readMemory(),
		},
		Database: db,
		Users: userStats{
			Total:        sum.Total,
			Active:       sum.Active,
			Inactive:     sum.Inactive,
			ActivityRate: activityRate(sum),
		},
		Services: map[string]string{
			"api":   "Running",
			"auth":  "Running",
			"email": email,
		},
	})
}

// formatUptime renders d as "<hours>h <minutes>m".
func formatUptime(d time.Duration) string {
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}

// activityRate is active/total as a percentage with one decimal.
func activityRate(s directory.Summary) string {
	if s.Total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(s.Active)*100/float64(s.Total))
}

func readMemory() memoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	const mib = 1 << 20
	return memoryStats{Used: ms.HeapAlloc / mib, Total: ms.HeapSys / mib}
}
