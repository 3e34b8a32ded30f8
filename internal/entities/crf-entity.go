package entities

import (
	"time"

	"crf-system/pkg/constants"
)

// CRF - заявка на ИТ-обслуживание.
type CRF struct {
	ID        uint64 `json:"id" db:"id"`
	CRFNumber string `json:"crf_number" db:"crf_number"`

	// Снимок данных заявителя на момент подачи
	RequesterID          uint64 `json:"requester_id" db:"requester_id"`
	RequesterName        string `json:"requester_name" db:"requester_name"`
	RequesterNationalID  string `json:"requester_national_id" db:"requester_national_id"`
	RequesterDesignation string `json:"requester_designation" db:"requester_designation"`
	RequesterExtension   string `json:"requester_extension" db:"requester_extension"`

	DepartmentID uint64  `json:"department_id" db:"department_id"`
	CategoryID   uint64  `json:"category_id" db:"category_id"`
	FactorID     *uint64 `json:"factor_id,omitempty" db:"factor_id"`

	// Заполняется из справочника категорий при загрузке
	RequiresDeputyApproval bool `json:"requires_deputy_approval" db:"-"`

	Issue  string  `json:"issue" db:"issue"`
	Reason *string `json:"reason,omitempty" db:"reason"`

	Status constants.CRFStatus `json:"status" db:"status"`

	AssignedTechnicianID *uint64 `json:"assigned_technician_id,omitempty" db:"assigned_technician_id"`
	VendorAdminID        *uint64 `json:"vendor_admin_id,omitempty" db:"vendor_admin_id"`

	DeptHeadApprovedBy *uint64    `json:"dept_head_approved_by,omitempty" db:"dept_head_approved_by"`
	DeptHeadApprovedAt *time.Time `json:"dept_head_approved_at,omitempty" db:"dept_head_approved_at"`
	DeputyApprovedBy   *uint64    `json:"deputy_approved_by,omitempty" db:"deputy_approved_by"`
	DeputyApprovedAt   *time.Time `json:"deputy_approved_at,omitempty" db:"deputy_approved_at"`
	ITHeadApprovedBy   *uint64    `json:"it_head_approved_by,omitempty" db:"it_head_approved_by"`
	ITHeadApprovedAt   *time.Time `json:"it_head_approved_at,omitempty" db:"it_head_approved_at"`

	RejectionReason *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RejectedBy      *uint64    `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`

	RedirectReason *string    `json:"redirect_reason,omitempty" db:"redirect_reason"`
	RedirectedBy   *uint64    `json:"redirected_by,omitempty" db:"redirected_by"`
	RedirectedAt   *time.Time `json:"redirected_at,omitempty" db:"redirected_at"`

	Remark *string `json:"remark,omitempty" db:"remark"`

	// Оптимистическая блокировка
	Version int `json:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAssignee - пользователь является назначенным техником.
func (c *CRF) IsAssignee(userID uint64) bool {
	return c.AssignedTechnicianID != nil && *c.AssignedTechnicianID == userID
}

// IsVendorAdmin - пользователь является назначенным вендор-администратором.
func (c *CRF) IsVendorAdmin(userID uint64) bool {
	return c.VendorAdminID != nil && *c.VendorAdminID == userID
}

// Clone возвращает глубокую копию, чтобы мутации движка не задевали исходник.
func (c *CRF) Clone() *CRF {
	cp := *c
	cp.FactorID = cloneUint64(c.FactorID)
	cp.Reason = cloneString(c.Reason)
	cp.AssignedTechnicianID = cloneUint64(c.AssignedTechnicianID)
	cp.VendorAdminID = cloneUint64(c.VendorAdminID)
	cp.DeptHeadApprovedBy = cloneUint64(c.DeptHeadApprovedBy)
	cp.DeptHeadApprovedAt = cloneTime(c.DeptHeadApprovedAt)
	cp.DeputyApprovedBy = cloneUint64(c.DeputyApprovedBy)
	cp.DeputyApprovedAt = cloneTime(c.DeputyApprovedAt)
	cp.ITHeadApprovedBy = cloneUint64(c.ITHeadApprovedBy)
	cp.ITHeadApprovedAt = cloneTime(c.ITHeadApprovedAt)
	cp.RejectionReason = cloneString(c.RejectionReason)
	cp.RejectedBy = cloneUint64(c.RejectedBy)
	cp.RejectedAt = cloneTime(c.RejectedAt)
	cp.RedirectReason = cloneString(c.RedirectReason)
	cp.RedirectedBy = cloneUint64(c.RedirectedBy)
	cp.RedirectedAt = cloneTime(c.RedirectedAt)
	cp.Remark = cloneString(c.Remark)
	return &cp
}

func cloneUint64(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
