// Package app wires the HTTP surface: health, metrics, interactive roster
// upload and the audit log export.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
	"github.com/kauri-edtech/smssync/internal/db"
	"github.com/kauri-edtech/smssync/internal/export"
	"github.com/kauri-edtech/smssync/internal/metrics"
	"github.com/kauri-edtech/smssync/internal/models"
	"github.com/kauri-edtech/smssync/internal/sms"
)

const maxUploadBytes = 32 << 20

type Deps struct {
	DB            *sql.DB
	Store         *db.Store
	Orch          *sms.Orchestrator
	ProfileFields []string
	Location      *time.Location
	Log           *zap.SugaredLogger
}

type HTTPServer struct {
	srv *http.Server
}

func StartHTTP(ctx context.Context, addr string, deps Deps) *HTTPServer {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := ctxutil.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := deps.DB.PingContext(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		metrics.ObserveDBPing(time.Since(t0))
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/upload", deps.handleUpload)
	mux.HandleFunc("/logs.xlsx", deps.handleLogsExport)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		_ = srv.ListenAndServe()
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return &HTTPServer{srv: srv}
}

// handleUpload imports one CSV roster for a cohort. Structural CSV problems
// come back as 400s here; the same conditions on the scheduled path only
// skip the school.
func (d Deps) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := ctxutil.WithOp(r.Context(), "upload")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	cohortID, err := strconv.ParseInt(r.FormValue("cohortid"), 10, 64)
	if err != nil || cohortID <= 0 {
		http.Error(w, "cohortid must be a positive integer", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field missing: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	payload, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	school, err := d.uploadSchool(ctx, cohortID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if school == nil {
		http.Error(w, "unknown cohortid", http.StatusBadRequest)
		return
	}
	ctx = ctxutil.WithSchoolNo(ctx, school.SchoolNo)
	ctx = ctxutil.WithClientIP(ctx, clientIP(r))

	students, err := sms.ParseRecords(payload, sms.ParseOptions{
		Format:        sms.FormatCSV,
		Delimiter:     r.FormValue("delimiter"),
		Encoding:      r.FormValue("encoding"),
		Source:        models.OriginWeb,
		ProfileFields: d.ProfileFields,
	})
	if err != nil {
		var rf *sms.RequiredFieldError
		if errors.Is(err, sms.ErrCSVEmpty) || errors.Is(err, sms.ErrCSVHeaderOnly) || errors.As(err, &rf) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sum, err := d.Orch.ImportSchool(ctx, school, students, nil, models.OriginWeb)
	if err != nil {
		d.Log.Errorw("upload import failed", "cohortid", cohortID, "err", err)
		http.Error(w, "import failed", http.StatusInternalServerError)
		return
	}
	d.Log.Infow("upload imported", "cohortid", cohortID, "ip", clientIP(r),
		"total", sum.Total, "created", sum.Created, "updated", sum.Updated)

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total":%d,"created":%d,"updated":%d,"error":%q}`,
		sum.Total, sum.Created, sum.Updated, sum.Error)
	_, _ = w.Write([]byte("\n"))
}

// uploadSchool resolves the target of an upload. Cohorts without an SMS
// school are importable too and run under school number 0.
func (d Deps) uploadSchool(ctx context.Context, cohortID int64) (*models.School, error) {
	school, err := d.Store.SchoolByCohortID(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	if school != nil {
		return school, nil
	}
	name, err := d.Store.CohortName(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}
	return &models.School{SchoolNo: 0, Name: name, CohortID: cohortID}, nil
}

func (d Deps) handleLogsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := ctxutil.WithOp(r.Context(), "logs-export")

	var schoolNo int64
	if v := r.URL.Query().Get("schoolno"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "schoolno must be an integer", http.StatusBadRequest)
			return
		}
		schoolNo = n
	}
	limit := 5000
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := d.Store.ListLogs(ctx, schoolNo, limit)
	if err != nil {
		http.Error(w, "list logs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	wb, err := export.NewLogsWorkbook(entries, d.Location)
	if err != nil {
		http.Error(w, "build workbook: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "sms_logs_"+time.Now().In(d.Location).Format("2006-01-02")+".xlsx"))
	if err := wb.File.Write(w); err != nil {
		d.Log.Warnw("logs export write failed", "err", err)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
