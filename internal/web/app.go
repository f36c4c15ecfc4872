package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskprogress/internal/celery"
	"taskprogress/internal/poller"
	"taskprogress/internal/progress"
	"taskprogress/internal/queue"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

var errBadRequest = errors.New("bad request")

// asynqInspector is the part of *asynq.Inspector used by the server
type asynqInspector interface {
	queue.Inspector
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	DeleteTask(queue, id string) error
	Servers() ([]*asynq.ServerInfo, error)
}

// revoker asks running tasks to stop, see queue.Revocations
type revoker interface {
	Request(ctx context.Context, taskID string) error
}

type App struct {
	config    Config
	status    *poller.Service
	submitter submitter
	// inspector and revocations are nil unless the backend is asynq
	inspector      asynqInspector
	revocations    revoker
	polls          *pollTracker
	log            logrus.FieldLogger
	closers        []func() error
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewApp connects to the configured backend
func NewApp(config Config, log *logrus.Logger) (*App, error) {
	reader := progress.NewReader(progress.WithLogger(log))

	switch config.Poller.Backend {
	case poller.BackendAsynq:
		redisOpt := config.Poller.RedisOpt()
		client := asynq.NewClient(redisOpt)
		inspector := asynq.NewInspector(redisOpt)
		redisClient := queue.NewRedisClient(redisOpt)
		source := poller.NewAsynqSource(inspector, config.Poller.QueueName)
		sub := &asynqSubmitter{client: client, inspector: inspector, queue: config.Poller.QueueName}
		app := newApp(config, poller.NewService(source, reader), sub, inspector, queue.NewRevocations(redisClient), log)
		app.closers = []func() error{client.Close, inspector.Close, redisClient.Close}
		return app, nil

	case poller.BackendCelery:
		pool := celery.NewRedisPool(config.Poller.CeleryBrokerURL)
		client, err := celery.NewClient(pool)
		if err != nil {
			return nil, fmt.Errorf("failed to create celery client: %w", err)
		}
		source := poller.NewCelerySource(celery.NewBackend(pool))
		sub := &celerySubmitter{client: client, pool: pool, taskName: config.CeleryTaskName}
		app := newApp(config, poller.NewService(source, reader), sub, nil, nil, log)
		app.closers = []func() error{pool.Close}
		return app, nil

	default:
		return nil, fmt.Errorf("%w: %q", poller.ErrUnknownBackend, config.Poller.Backend)
	}
}

func newApp(config Config, status *poller.Service, sub submitter, inspector asynqInspector, revocations revoker, log logrus.FieldLogger) *App {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	app := &App{
		config:         config,
		status:         status,
		submitter:      sub,
		inspector:      inspector,
		revocations:    revocations,
		log:            log,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	// Abandoned tasks can only be cleaned up where they can be cancelled.
	if app.canCancel() {
		app.polls = newPollTracker(config.AbandonmentTimeout)
	}
	return app
}

func (a *App) canCancel() bool {
	return a.inspector != nil && a.revocations != nil
}

// Router builds the API routes
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()

	postTask := a.PostTask
	getTaskStatus := a.GetTaskStatus
	deleteTask := a.DeleteTask
	getWorkers := a.GetWorkers

	// disable cors for local development
	if !a.config.Production {
		postTask = disableCors(postTask)
		getTaskStatus = disableCors(getTaskStatus)
		deleteTask = disableCors(deleteTask)
		getWorkers = disableCors(getWorkers)
	}

	router.HandleFunc("/api/tasks", postTask).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/tasks/{task_id}", getTaskStatus).Methods("GET")
	router.HandleFunc("/api/tasks/{task_id}", deleteTask).Methods("DELETE")
	router.HandleFunc("/api/workers", getWorkers).Methods("GET")
	return router
}

func (a *App) Serve() error {
	if a.polls != nil {
		go a.watchAbandoned()
	}

	srv := &http.Server{
		Handler:      a.Router(),
		Addr:         a.config.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	a.log.Infof("Web server is available on %s (backend: %s)", a.config.Addr, a.config.Poller.Backend)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		a.log.Info("Shutdown signal received, stopping abandonment detector...")
		a.shutdownCancel()

		a.log.Info("Shutting down HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Errorf("Server shutdown error: %v", err)
		}
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return errors.Join(err, a.Close())
}

// Close releases backend connections
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

type submitResponse struct {
	TaskID string         `json:"task_id"`
	State  progress.State `json:"state"`
}

func (a *App) PostTask(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	pending, err := a.submitter.Pending()
	if err != nil {
		// Queue doesn't exist yet (worker not started or no tasks yet)
		a.log.Debugf("Queue info not available (queue may not exist yet): %v", err)
		pending = 0
	}
	if pending >= a.config.MaxPending {
		sendErr(w, http.StatusServiceUnavailable, "Server overloaded, try again later")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendErr(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	taskID, err := a.submitter.Submit(body)
	if err != nil {
		if errors.Is(err, errBadRequest) {
			sendErr(w, http.StatusBadRequest, "Bad request. "+err.Error())
			return
		}
		a.log.Errorf("Failed to enqueue task: %v", err)
		sendErr(w, http.StatusInternalServerError, "Failed to enqueue task")
		return
	}

	a.log.WithField("task_id", taskID).Infof("Enqueued task: %s", taskID)
	a.polls.touch(taskID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitResponse{TaskID: taskID, State: progress.StatePending})
}

func (a *App) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	a.polls.touch(taskID)

	response, err := a.status.Status(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, poller.ErrNotFound) {
			a.polls.forget(taskID)
			sendErr(w, http.StatusNotFound, "Task not found")
			return
		}
		a.log.WithField("task_id", taskID).Errorf("Failed to read task status: %v", err)
		sendErr(w, http.StatusBadGateway, "Result backend unavailable")
		return
	}

	if response.Complete {
		a.polls.forget(taskID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// DeleteTask handles DELETE /api/tasks/{task_id} - Cancel or revoke a task
func (a *App) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if !a.canCancel() {
		sendErr(w, http.StatusNotImplemented, "Cancellation is not supported by this backend")
		return
	}

	taskID := mux.Vars(r)["task_id"]
	log := a.log.WithField("task_id", taskID)
	log.Infof("[DELETE] Request to cancel task: %s", taskID)

	status, err := a.cancelTask(r.Context(), taskID)
	switch {
	case errors.Is(err, queue.ErrResultNotFound):
		sendErr(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, errTaskFinished):
		sendErr(w, http.StatusGone, "Task has already completed")
	case err != nil:
		log.Errorf("[DELETE] Failed to cancel task %s: %v", taskID, err)
		sendErr(w, http.StatusInternalServerError, "Failed to cancel task")
	default:
		a.polls.forget(taskID)
		log.Infof("[DELETE] Task %s: %s", taskID, status)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"task_id": taskID,
			"status":  status,
		})
	}
}

var errTaskFinished = errors.New("task already finished")

// cancelTask deletes a task that is not running and asks a running one to
// stop. The handler notices the request between items.
func (a *App) cancelTask(ctx context.Context, taskID string) (string, error) {
	queueName := a.config.Poller.QueueName
	res, err := queue.Lookup(a.inspector, queueName, taskID)
	if err != nil {
		return "", err
	}

	switch res.State() {
	case progress.StatePending, progress.StateRetry:
		if err := a.inspector.DeleteTask(queueName, taskID); err != nil {
			return "", err
		}
		return "cancelled", nil
	case progress.StateStarted, progress.StateProgress:
		if err := a.revocations.Request(ctx, taskID); err != nil {
			return "", err
		}
		return "revoking", nil
	default:
		return "", fmt.Errorf("%w: %s", errTaskFinished, res.State())
	}
}

type workersResponse struct {
	WorkerProcesses int            `json:"worker_processes"`
	TotalCapacity   int            `json:"total_capacity"`
	ActiveTasks     int            `json:"active_tasks"`
	IdleCapacity    int            `json:"idle_capacity"`
	Workers         []workerDetail `json:"workers"`
}

type workerDetail struct {
	ID           string         `json:"id"`
	Host         string         `json:"host"`
	PID          int            `json:"pid"`
	Concurrency  int            `json:"concurrency"`
	Started      string         `json:"started"`
	Status       string         `json:"status"`
	ActiveTasks  int            `json:"active_tasks"`
	IdleCapacity int            `json:"idle_capacity"`
	Queues       map[string]int `json:"queues"`
}

// summarizeWorkers adds up the capacity of every running asynq server
func summarizeWorkers(servers []*asynq.ServerInfo) workersResponse {
	summary := workersResponse{
		WorkerProcesses: len(servers),
		Workers:         make([]workerDetail, 0, len(servers)),
	}
	for _, srv := range servers {
		busy := len(srv.ActiveWorkers)
		summary.TotalCapacity += srv.Concurrency
		summary.ActiveTasks += busy
		summary.Workers = append(summary.Workers, workerDetail{
			ID:           srv.ID,
			Host:         srv.Host,
			PID:          srv.PID,
			Concurrency:  srv.Concurrency,
			Started:      srv.Started.Format(time.RFC3339),
			Status:       srv.Status,
			ActiveTasks:  busy,
			IdleCapacity: srv.Concurrency - busy,
			Queues:       srv.Queues,
		})
	}
	summary.IdleCapacity = summary.TotalCapacity - summary.ActiveTasks
	return summary
}

func (a *App) GetWorkers(w http.ResponseWriter, r *http.Request) {
	if a.inspector == nil {
		sendErr(w, http.StatusNotImplemented, "Worker listing is not supported by this backend")
		return
	}

	servers, err := a.inspector.Servers()
	if err != nil {
		a.log.Errorf("Failed to list asynq servers: %v", err)
		sendErr(w, http.StatusInternalServerError, "Failed to retrieve worker information")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summarizeWorkers(servers))
}

func sendErr(w http.ResponseWriter, code int, message string) {
	resp, _ := json.Marshal(map[string]string{"error": message})
	http.Error(w, string(resp), code)
}

// Needed in order to disable CORS for local development
func disableCors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		h(w, r)
	}
}
