package services

import (
	"context"
	"fmt"
	"time"

	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileResult mirrors the no-show procedure's reply.
type ReconcileResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	LeadID  uuid.UUID `json:"leadId,omitempty"`
}

// NoShowReconciler folds a no-show customer back into a Re-follow lead.
type NoShowReconciler struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	logger  *zap.Logger
	Now     func() time.Time
}

func NewNoShowReconciler(db *gorm.DB, m *metrics.Metrics, logger *zap.Logger) *NoShowReconciler {
	return &NoShowReconciler{db: db, metrics: m, logger: logger, Now: time.Now}
}

// Reconcile runs the no-show transition for customerID as one transaction.
// On failure the result carries Success=false and nothing was changed.
func (r *NoShowReconciler) Reconcile(ctx context.Context, sess SessionContext, customerID uuid.UUID, expectedVersion int) (*ReconcileResult, error) {
	var lead *models.Lead
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := sess.Scope(tx).First(&customer, "id = ?", customerID).Error; err != nil {
			return ClassifyDBError("load customer", err)
		}
		if err := checkVersion("customer", customerID, customer.Version, expectedVersion); err != nil {
			return err
		}
		var err error
		lead, err = r.reconcileTx(tx, sess, &customer)
		return err
	})
	return r.finish(sess, customerID, lead, err)
}

func (r *NoShowReconciler) finish(sess SessionContext, customerID uuid.UUID, lead *models.Lead, err error) (*ReconcileResult, error) {
	if err != nil {
		r.metrics.NoShowReconciliations.WithLabelValues("failed").Inc()
		r.logger.Warn("No-show reconciliation failed", zap.String("customer_id", customerID.String()), zap.Error(err))
		return &ReconcileResult{Success: false, Message: err.Error()}, err
	}
	r.metrics.NoShowReconciliations.WithLabelValues("success").Inc()
	r.logger.Info("Customer moved back to leads",
		zap.String("customer_id", customerID.String()),
		zap.String("lead_id", lead.ID.String()),
		zap.String("user", sess.Actor()),
	)
	return &ReconcileResult{
		Success: true,
		Message: "Customer marked as no-show and moved to Re-follow",
		LeadID:  lead.ID,
	}, nil
}

// reconcileTx creates the Re-follow lead, records the customer's No-Show
// status, closes its appointments and removes it from the active set. It
// must run inside tx; the caller owns commit and rollback.
func (r *NoShowReconciler) reconcileTx(tx *gorm.DB, sess SessionContext, customer *models.Customer) (*models.Lead, error) {
	now := r.Now()
	var done []string
	step := func(name string, err error) error {
		if err != nil {
			return &PartialFailureError{Op: "reconcile no-show", Step: name, Completed: done, Err: ClassifyDBError(name, err)}
		}
		done = append(done, name)
		return nil
	}

	lead := &models.Lead{
		BranchID:           customer.BranchID,
		ContactID:          customer.ContactID,
		ContactFullName:    customer.ContactFullName,
		ContactPhoneNumber: customer.ContactPhoneNumber,
		LeadSource:         customer.LeadSource,
		ServiceOfInterest:  customer.Department,
		Status:             models.LeadRefollow,
		AssignedAgent:      UnassignedAgent,
		Date:               now,
		Note:               missedAppointmentNote(customer),
		NotesData:          cloneSlice(customer.Notes),
		Attachments:        cloneSlice(customer.Attachments),
		Comments:           cloneSlice(customer.Comments),
		StatusHistory:      []models.HistoryEntry{},
	}
	if err := step("create re-follow lead", tx.Create(lead).Error); err != nil {
		return nil, err
	}

	if customer.Status != models.CustomerNoShow {
		updated := *customer
		updated.Status = models.CustomerNoShow
		updated.StatusHistory = PrependHistory(customer.StatusHistory, DiffCustomer(customer, &updated), sess.Actor(), now)
		updated.Version = customer.Version + 1
		if err := saveVersioned(tx, "customer", customer.ID, customer.Version, &updated); err != nil {
			return nil, &PartialFailureError{Op: "reconcile no-show", Step: "record customer status", Completed: done, Err: err}
		}
		*customer = updated
		done = append(done, "record customer status")
	}

	err := tx.Model(&models.Appointment{}).
		Where("customer_id = ? AND status IN ?", customer.ID, openAppointmentStatuses()).
		Updates(map[string]any{
			"status":  models.AppointmentNoShow,
			"version": gorm.Expr("version + 1"),
		}).Error
	if err := step("close appointments", err); err != nil {
		return nil, err
	}
	if err := step("archive appointments", tx.Where("customer_id = ?", customer.ID).Delete(&models.Appointment{}).Error); err != nil {
		return nil, err
	}
	if err := step("archive customer", tx.Delete(&models.Customer{}, "id = ?", customer.ID).Error); err != nil {
		return nil, err
	}
	return lead, nil
}

func missedAppointmentNote(c *models.Customer) string {
	if c.AppointmentDate.IsZero() {
		return "Missed appointment, moved back to Re-follow"
	}
	note := fmt.Sprintf("Missed appointment on %s", c.AppointmentDate.Format("2006-01-02 15:04"))
	if c.Department != "" {
		note += " (" + c.Department + ")"
	}
	return note
}

func openAppointmentStatuses() []string {
	var out []string
	for _, st := range models.AppointmentStatuses {
		if st.IsOpen() {
			out = append(out, string(st))
		}
	}
	return out
}
