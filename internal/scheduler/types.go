package scheduler

import (
	"context"
	"sync"
	"time"

	"alertbot/internal/eventbus"
	logx "alertbot/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Job is the unit of work a trigger runs.
type Job func(ctx context.Context) error

type Config struct {
	Timezone       string        // IANA TZ, e.g. "Asia/Kolkata"
	DefaultTimeout time.Duration // 0 disables
}

type scheduleDef struct {
	name    string
	spec    ParsedSpec
	timeout time.Duration
	job     Job
	entryID cron.EntryID
}

type onceDef struct {
	at      time.Time
	timeout time.Duration
	job     Job
	ver     uint64
	timer   *time.Timer
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	c    *cron.Cron
	defs []scheduleDef

	// runCtx is canceled by Stop so in-flight jobs observe shutdown.
	runCtx    context.Context
	runCancel context.CancelFunc
	inflight  sync.WaitGroup

	// tmu guards once; timers exist only while started, definitions persist.
	tmu     sync.Mutex
	once    map[string]*onceDef
	onceSeq uint64
}

type ScheduleInfo struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

type OnceInfo struct {
	Name string
	At   time.Time
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
	Once      []OnceInfo
}
