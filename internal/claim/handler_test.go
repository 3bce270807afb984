package claim_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/expense-claims/internal"
	"github.com/frahmantamala/expense-claims/internal/claim"
	claimPostgres "github.com/frahmantamala/expense-claims/internal/claim/postgres"
	claimDatamodel "github.com/frahmantamala/expense-claims/internal/core/datamodel/claim"
	"github.com/frahmantamala/expense-claims/internal/core/events"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
	"github.com/frahmantamala/expense-claims/internal/storage"
)

var _ = Describe("Claim Handler Integration", func() {
	var (
		db     *gorm.DB
		fs     afero.Fs
		router *chi.Mux
		bus    *events.EventBus

		principals = map[string]*coreuser.Principal{
			"staff":   {UserID: 1, Username: "staff", Role: coreuser.RoleStaff},
			"staff2":  {UserID: 4, Username: "staff2", Role: coreuser.RoleStaff},
			"manager": {UserID: 2, Username: "manager", Role: coreuser.RoleManager},
			"finance": {UserID: 3, Username: "finance", Role: coreuser.RoleFinance},
		}
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&claimDatamodel.ExpenseClaim{})).To(Succeed())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		fs = afero.NewMemMapFs()
		bus = events.NewEventBus(slogger)

		svc := claim.NewService(
			claimPostgres.NewClaimRepository(db),
			claimPostgres.NewSummaryRepository(sqlx.NewDb(sqlDB, "sqlite3")),
			storage.NewArchiver(fs, "uploads", slogger),
			bus,
			slogger,
		)
		handler := claim.NewHandler(svc, 1<<10)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if p, ok := principals[r.Header.Get("X-Test-User")]; ok {
					r = r.WithContext(internal.ContextWithPrincipal(r.Context(), p))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Route("/expenses", func(r chi.Router) {
			r.Get("/", handler.ListClaims)
			r.Post("/submit", handler.Submit)
			r.Post("/upload", handler.Upload)
			r.Get("/summary", handler.Summary)
			r.Get("/{id}", handler.GetClaim)
			r.Put("/{id}/approve", handler.Approve)
			r.Put("/{id}/reject", handler.Reject)
			r.Put("/{id}/receipt", handler.AttachReceipt)
		})
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	send := func(req *http.Request, as string) *httptest.ResponseRecorder {
		if as != "" {
			req.Header.Set("X-Test-User", as)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	jsonReq := func(method, path, body string) *http.Request {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	fileReq := func(method, path, name, content string) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", name)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte(content))
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	submit := func() int64 {
		rec := send(jsonReq(http.MethodPost, "/expenses/submit", `{"date":"2024-01-01","category":"travel","amount":42.50,"status":"APPROVED"}`), "staff")
		Expect(rec.Code).To(Equal(http.StatusOK))
		body := decode(rec)
		Expect(body).To(HaveKeyWithValue("message", "Claim submitted!"))
		return int64(body["id"].(float64))
	}

	It("submits, rejects and then refuses to approve", func() {
		id := submit()
		path := "/expenses/" + itoa(id)

		rec := send(httptest.NewRequest(http.MethodGet, path, nil), "staff")
		Expect(rec.Code).To(Equal(http.StatusOK))
		body := decode(rec)
		Expect(body).To(HaveKeyWithValue("status", "PENDING"))
		Expect(body).To(HaveKeyWithValue("date", "2024-01-01"))
		Expect(body).To(HaveKeyWithValue("amount", "42.50"))
		Expect(body).NotTo(HaveKey("reason_for_rejection"))

		rec = send(httptest.NewRequest(http.MethodPut, path+"/reject?reason=over+budget", nil), "manager")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)).To(HaveKeyWithValue("message", "Claim rejected!"))

		rec = send(httptest.NewRequest(http.MethodPut, path+"/approve", nil), "finance")
		Expect(rec.Code).To(Equal(http.StatusConflict))

		body = decode(send(httptest.NewRequest(http.MethodGet, path, nil), "manager"))
		Expect(body).To(HaveKeyWithValue("status", "REJECTED"))
		Expect(body).To(HaveKeyWithValue("reason_for_rejection", "over budget"))
		Expect(body).To(HaveKeyWithValue("manager_id", BeNumerically("==", 2)))
	})

	It("approves a pending claim", func() {
		id := submit()
		rec := send(httptest.NewRequest(http.MethodPut, "/expenses/"+itoa(id)+"/approve", nil), "manager")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)).To(HaveKeyWithValue("message", "Claim approved!"))
	})

	It("takes the rejection reason from a JSON body", func() {
		id := submit()
		rec := send(jsonReq(http.MethodPut, "/expenses/"+itoa(id)+"/reject", `{"reason":"duplicate"}`), "manager")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("answers 400 for a reject without reason", func() {
		id := submit()
		rec := send(httptest.NewRequest(http.MethodPut, "/expenses/"+itoa(id)+"/reject", nil), "manager")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 404 for an unknown claim and 400 for a bad id", func() {
		Expect(send(httptest.NewRequest(http.MethodPut, "/expenses/999/approve", nil), "manager").Code).To(Equal(http.StatusNotFound))
		Expect(send(httptest.NewRequest(http.MethodPut, "/expenses/abc/approve", nil), "manager").Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 403 to staff reviewing and 401 without a principal", func() {
		id := submit()
		Expect(send(httptest.NewRequest(http.MethodPut, "/expenses/"+itoa(id)+"/approve", nil), "staff").Code).To(Equal(http.StatusForbidden))
		Expect(send(httptest.NewRequest(http.MethodPut, "/expenses/"+itoa(id)+"/approve", nil), "").Code).To(Equal(http.StatusUnauthorized))
	})

	It("creates a claim from an uploaded file", func() {
		rec := send(fileReq(http.MethodPost, "/expenses/upload", "taxi.png", "png-bytes"), "staff")
		Expect(rec.Code).To(Equal(http.StatusOK))
		body := decode(rec)
		Expect(body).To(HaveKeyWithValue("message", "File uploaded successfully!"))

		receipt := body["receipt_url"].(string)
		Expect(receipt).To(HavePrefix("uploads/"))
		Expect(receipt).To(HaveSuffix("_taxi.png"))
		data, err := afero.ReadFile(fs, receipt)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("png-bytes"))
	})

	It("refuses uploads over the size limit", func() {
		rec := send(fileReq(http.MethodPost, "/expenses/upload", "big.bin", strings.Repeat("x", 4<<10)), "staff")
		Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))

		var count int64
		Expect(db.Model(&claimDatamodel.ExpenseClaim{}).Count(&count).Error).NotTo(HaveOccurred())
		Expect(count).To(BeZero())
	})

	It("answers 400 when the file field is missing", func() {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		Expect(mw.WriteField("note", "hi")).To(Succeed())
		Expect(mw.Close()).To(Succeed())
		req := httptest.NewRequest(http.MethodPost, "/expenses/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		Expect(send(req, "staff").Code).To(Equal(http.StatusBadRequest))
	})

	It("attaches a receipt to the caller's own pending claim", func() {
		id := submit()
		path := "/expenses/" + itoa(id) + "/receipt"

		Expect(send(fileReq(http.MethodPut, path, "r.pdf", "pdf"), "staff2").Code).To(Equal(http.StatusForbidden))

		rec := send(fileReq(http.MethodPut, path, "r.pdf", "pdf"), "staff")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)).To(HaveKeyWithValue("message", "Receipt attached!"))

		var count int64
		Expect(db.Model(&claimDatamodel.ExpenseClaim{}).Count(&count).Error).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))
	})

	It("lists claims per role and summarises them for reviewers", func() {
		first := submit()
		submit()
		Expect(send(httptest.NewRequest(http.MethodPut, "/expenses/"+itoa(first)+"/approve", nil), "manager").Code).To(Equal(http.StatusOK))

		body := decode(send(httptest.NewRequest(http.MethodGet, "/expenses?status=PENDING", nil), "manager"))
		Expect(body).To(HaveKeyWithValue("count", BeNumerically("==", 1)))

		body = decode(send(httptest.NewRequest(http.MethodGet, "/expenses", nil), "staff2"))
		Expect(body).To(HaveKeyWithValue("count", BeNumerically("==", 0)))

		Expect(send(httptest.NewRequest(http.MethodGet, "/expenses/summary", nil), "staff").Code).To(Equal(http.StatusForbidden))

		rec := send(httptest.NewRequest(http.MethodGet, "/expenses/summary", nil), "finance")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var summary claim.SummaryResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &summary)).To(Succeed())
		Expect(summary.Statuses).To(ConsistOf(
			claim.StatusSummaryResponse{Status: "APPROVED", Count: 1, Total: "42.50"},
			claim.StatusSummaryResponse{Status: "PENDING", Count: 1, Total: "42.50"},
		))
	})
})

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
