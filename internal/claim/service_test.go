package claim_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/expense-claims/internal"
	"github.com/frahmantamala/expense-claims/internal/claim"
	claimDatamodel "github.com/frahmantamala/expense-claims/internal/core/datamodel/claim"
	"github.com/frahmantamala/expense-claims/internal/core/events"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
)

type mockRepository struct {
	mu     sync.Mutex
	claims map[int64]*claimDatamodel.ExpenseClaim
	nextID int64
	err    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{claims: map[int64]*claimDatamodel.ExpenseClaim{}, nextID: 1}
}

func (m *mockRepository) Create(ctx context.Context, c *claimDatamodel.ExpenseClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c.ID = m.nextID
	m.nextID++
	cp := *c
	m.claims[c.ID] = &cp
	return nil
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*claimDatamodel.ExpenseClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.claims[id]
	if !ok {
		return nil, claim.ErrClaimNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepository) filter(keep func(*claimDatamodel.ExpenseClaim) bool) []*claimDatamodel.ExpenseClaim {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*claimDatamodel.ExpenseClaim
	for id := int64(1); id < m.nextID; id++ {
		if c, ok := m.claims[id]; ok && keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

func (m *mockRepository) GetAll(ctx context.Context) ([]*claimDatamodel.ExpenseClaim, error) {
	return m.filter(func(*claimDatamodel.ExpenseClaim) bool { return true }), nil
}

func (m *mockRepository) GetByStatus(ctx context.Context, status string) ([]*claimDatamodel.ExpenseClaim, error) {
	return m.filter(func(c *claimDatamodel.ExpenseClaim) bool { return c.Status == status }), nil
}

func (m *mockRepository) GetByStaffID(ctx context.Context, staffID int64) ([]*claimDatamodel.ExpenseClaim, error) {
	return m.filter(func(c *claimDatamodel.ExpenseClaim) bool { return c.StaffID != nil && *c.StaffID == staffID }), nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, c *claimDatamodel.ExpenseClaim) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.claims[c.ID]
	if !ok || stored.Status != string(claim.StatusPending) {
		return false, nil
	}
	stored.Status = c.Status
	stored.ReasonForRejection = c.ReasonForRejection
	stored.ManagerID = c.ManagerID
	stored.ReviewedAt = c.ReviewedAt
	return true, nil
}

func (m *mockRepository) UpdateReceipt(ctx context.Context, id, staffID int64, receiptURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.claims[id]
	if !ok || stored.StaffID == nil || *stored.StaffID != staffID || stored.Status != string(claim.StatusPending) {
		return false, nil
	}
	stored.ReceiptURL = &receiptURL
	return true, nil
}

func (m *mockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}

type mockSummaries struct {
	rows []claim.StatusSummary
}

func (m *mockSummaries) Summary(ctx context.Context) ([]claim.StatusSummary, error) {
	return m.rows, nil
}

type mockArchiver struct {
	stored []string
	err    error
}

func (m *mockArchiver) Store(ctx context.Context, r io.Reader, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	p := "uploads/fixed_" + name
	m.stored = append(m.stored, p)
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.ClaimEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e.(*events.ClaimEvent))
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

var _ = Describe("Service", func() {
	var (
		repo      *mockRepository
		archiver  *mockArchiver
		publisher *recordingPublisher
		svc       *claim.Service
		ctx       context.Context
		now       time.Time

		staff   = &coreuser.Principal{UserID: 1, Username: "sam", Role: coreuser.RoleStaff}
		other   = &coreuser.Principal{UserID: 4, Username: "oli", Role: coreuser.RoleStaff}
		manager = &coreuser.Principal{UserID: 2, Username: "max", Role: coreuser.RoleManager}
		finance = &coreuser.Principal{UserID: 3, Username: "fay", Role: coreuser.RoleFinance}
	)

	BeforeEach(func() {
		repo = newMockRepository()
		archiver = &mockArchiver{}
		publisher = &recordingPublisher{}
		now = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = claim.NewService(repo, &mockSummaries{}, archiver, publisher, logger).
			WithClock(func() time.Time { return now })
		ctx = context.Background()
	})

	submit := func(p *coreuser.Principal) *claim.Claim {
		c, err := svc.Submit(ctx, p, claim.SubmitClaimDTO{
			Date:     "2024-01-01",
			Category: "travel",
			Amount:   decimal.RequireFromString("42.50"),
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Describe("Submit", func() {
		It("persists a PENDING claim even when the draft says otherwise", func() {
			c, err := svc.Submit(ctx, staff, claim.SubmitClaimDTO{
				Date:     "2024-01-01",
				Category: "travel",
				Amount:   decimal.RequireFromString("42.50"),
				Status:   "APPROVED",
			})
			Expect(err).NotTo(HaveOccurred())

			stored, err := svc.GetByID(ctx, staff, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(claim.StatusPending))
			Expect(stored.ReasonForRejection).To(BeNil())
			Expect(*stored.StaffID).To(Equal(staff.UserID))
			Expect(stored.Amount.Equal(decimal.RequireFromString("42.5"))).To(BeTrue())
			Expect(publisher.types()).To(ConsistOf(events.EventTypeClaimSubmitted))
		})

		It("stores the category without surrounding spaces", func() {
			c, err := svc.Submit(ctx, staff, claim.SubmitClaimDTO{
				Category: "   travel   ",
				Amount:   decimal.NewFromInt(5),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Category).To(Equal("travel"))

			stored, err := svc.GetByID(ctx, staff, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Category).To(Equal("travel"))
		})

		It("is reserved for staff", func() {
			_, err := svc.Submit(ctx, manager, claim.SubmitClaimDTO{Category: "travel", Amount: decimal.NewFromInt(1)})
			Expect(err).To(MatchError(claim.ErrForbidden))
			Expect(repo.count()).To(BeZero())
		})

		It("rejects invalid drafts without writing", func() {
			_, err := svc.Submit(ctx, staff, claim.SubmitClaimDTO{Category: "", Amount: decimal.NewFromInt(-5)})
			Expect(err).To(HaveOccurred())
			Expect(repo.count()).To(BeZero())
		})
	})

	Describe("review", func() {
		It("approves a pending claim and records the reviewer", func() {
			c := submit(staff)
			Expect(svc.Approve(ctx, manager, c.ID)).To(Succeed())

			stored, _ := svc.GetByID(ctx, manager, c.ID)
			Expect(stored.Status).To(Equal(claim.StatusApproved))
			Expect(*stored.ManagerID).To(Equal(manager.UserID))
			Expect(*stored.ReviewedAt).To(Equal(now))
		})

		It("rejects with a reason", func() {
			c := submit(staff)
			Expect(svc.Reject(ctx, finance, c.ID, "too expensive")).To(Succeed())

			stored, _ := svc.GetByID(ctx, finance, c.ID)
			Expect(stored.Status).To(Equal(claim.StatusRejected))
			Expect(*stored.ReasonForRejection).To(Equal("too expensive"))
		})

		It("needs a reason to reject", func() {
			c := submit(staff)
			Expect(svc.Reject(ctx, manager, c.ID, "")).To(MatchError(claim.ErrReasonRequired))
		})

		It("reports unknown claims as not found", func() {
			Expect(svc.Approve(ctx, manager, 99)).To(MatchError(claim.ErrClaimNotFound))
			Expect(svc.Reject(ctx, manager, 99, "x")).To(MatchError(claim.ErrClaimNotFound))
		})

		It("does not let staff review", func() {
			c := submit(staff)
			Expect(svc.Approve(ctx, staff, c.ID)).To(MatchError(claim.ErrForbidden))
			Expect(svc.Reject(ctx, staff, c.ID, "no")).To(MatchError(claim.ErrForbidden))
		})

		It("walks the submit, reject, approve scenario and keeps the rejection", func() {
			c := submit(staff)
			Expect(c.Status).To(Equal(claim.StatusPending))

			Expect(svc.Reject(ctx, manager, c.ID, "over budget")).To(Succeed())
			err := svc.Approve(ctx, finance, c.ID)
			Expect(err).To(MatchError(claim.ErrInvalidTransition))

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(409))

			stored, _ := svc.GetByID(ctx, staff, c.ID)
			Expect(stored.Status).To(Equal(claim.StatusRejected))
			Expect(*stored.ReasonForRejection).To(Equal("over budget"))
			Expect(publisher.types()).To(Equal([]string{events.EventTypeClaimSubmitted, events.EventTypeClaimRejected}))
		})

		It("lets exactly one of two concurrent reviewers win", func() {
			c := submit(staff)

			var wg sync.WaitGroup
			results := make([]error, 2)
			for i, p := range []*coreuser.Principal{manager, finance} {
				wg.Add(1)
				go func(i int, p *coreuser.Principal) {
					defer GinkgoRecover()
					defer wg.Done()
					if i == 0 {
						results[i] = svc.Approve(ctx, p, c.ID)
					} else {
						results[i] = svc.Reject(ctx, p, c.ID, "dup")
					}
				}(i, p)
			}
			wg.Wait()

			failures := 0
			for _, err := range results {
				if err != nil {
					Expect(err).To(MatchError(claim.ErrInvalidTransition))
					failures++
				}
			}
			Expect(failures).To(Equal(1))
		})
	})

	Describe("receipts", func() {
		It("creates a new receipt-only claim on upload", func() {
			c, err := svc.CreateWithReceipt(ctx, staff, strings.NewReader("png"), "taxi.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(*c.ReceiptURL).To(Equal("uploads/fixed_taxi.png"))
			Expect(c.Status).To(Equal(claim.StatusPending))
			Expect(c.Category).To(BeEmpty())
			Expect(repo.count()).To(Equal(1))
		})

		It("writes no claim when storage fails", func() {
			archiver.err = internal.ErrStorageFailure.WithCause(errors.New("disk full"))

			_, err := svc.CreateWithReceipt(ctx, staff, strings.NewReader("png"), "taxi.png")
			Expect(err).To(MatchError(internal.ErrStorageFailure))
			Expect(repo.count()).To(BeZero())
		})

		It("attaches a receipt to an existing claim without creating another", func() {
			c := submit(staff)

			updated, err := svc.AttachReceipt(ctx, staff, c.ID, strings.NewReader("pdf"), "hotel.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.ID).To(Equal(c.ID))
			Expect(*updated.ReceiptURL).To(Equal("uploads/fixed_hotel.pdf"))
			Expect(repo.count()).To(Equal(1))

			stored, _ := svc.GetByID(ctx, staff, c.ID)
			Expect(*stored.ReceiptURL).To(Equal("uploads/fixed_hotel.pdf"))
			Expect(stored.Category).To(Equal("travel"))
		})

		It("only lets the owner attach, and only while pending", func() {
			c := submit(staff)

			_, err := svc.AttachReceipt(ctx, other, c.ID, strings.NewReader("x"), "r.png")
			Expect(err).To(MatchError(claim.ErrForbidden))

			Expect(svc.Approve(ctx, manager, c.ID)).To(Succeed())
			_, err = svc.AttachReceipt(ctx, staff, c.ID, strings.NewReader("x"), "r.png")
			Expect(err).To(MatchError(claim.ErrInvalidTransition))

			_, err = svc.AttachReceipt(ctx, staff, 99, strings.NewReader("x"), "r.png")
			Expect(err).To(MatchError(claim.ErrClaimNotFound))
			Expect(archiver.stored).To(BeEmpty())
		})
	})

	Describe("reads", func() {
		It("hides other staff members' claims", func() {
			c := submit(staff)
			_, err := svc.GetByID(ctx, other, c.ID)
			Expect(err).To(MatchError(claim.ErrForbidden))
		})

		It("lists own claims for staff and everything for reviewers", func() {
			submit(staff)
			second := submit(other)
			Expect(svc.Approve(ctx, manager, second.ID)).To(Succeed())

			mine, err := svc.List(ctx, staff, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(1))

			all, err := svc.List(ctx, manager, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			pending, err := svc.List(ctx, finance, "pending")
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Status).To(Equal(claim.StatusPending))

			_, err = svc.List(ctx, finance, "paid")
			Expect(err).To(HaveOccurred())
		})

		It("keeps the summary for reviewers", func() {
			_, err := svc.Summary(ctx, staff)
			Expect(err).To(MatchError(claim.ErrForbidden))

			_, err = svc.Summary(ctx, manager)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
