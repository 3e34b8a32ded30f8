package dto

import (
	"github.com/aarondl/null/v8"
)

// CreateCRFDTO - поле "data" multipart-формы создания заявки.
type CreateCRFDTO struct {
	CategoryID uint64      `json:"category_id" validate:"required,gt=0"`
	FactorID   null.Uint64 `json:"factor_id"`
	Issue      string      `json:"issue" validate:"required,not_blank,min=5,max=4000"`
	Reason     null.String `json:"reason" validate:"omitempty,max=4000"`
	Extension  string      `json:"extension" validate:"omitempty,max=32"`
}

// ActionDTO - тело POST /api/crfs/:id/actions.
type ActionDTO struct {
	Action     string      `json:"action" validate:"required,crf_action"`
	Reason     null.String `json:"reason" validate:"omitempty,max=4000"`
	AssigneeID null.Uint64 `json:"assignee_id"`
	Remark     null.String `json:"remark" validate:"omitempty,max=4000"`
	FactorID   null.Uint64 `json:"factor_id"`
}

type ShortUserDTO struct {
	ID  uint64 `json:"id"`
	Fio string `json:"fio"`
}

// CRFSummaryDTO - строка списка заявок.
type CRFSummaryDTO struct {
	ID             uint64  `json:"id"`
	CRFNumber      string  `json:"crf_number"`
	RequesterID    uint64  `json:"requester_id"`
	RequesterName  string  `json:"requester_name"`
	DepartmentID   uint64  `json:"department_id"`
	DepartmentName string  `json:"department_name,omitempty"`
	CategoryID     uint64  `json:"category_id"`
	CategoryName   string  `json:"category_name,omitempty"`
	FactorName     *string `json:"factor_name,omitempty"`
	Issue          string  `json:"issue"`
	Status         int     `json:"status"`
	StatusLabel    string  `json:"status_label"`
	TechnicianName *string `json:"technician_name,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// CRFDetailDTO - карточка заявки с доступными пользователю действиями.
type CRFDetailDTO struct {
	ID                     uint64   `json:"id"`
	CRFNumber              string   `json:"crf_number"`
	RequesterID            uint64   `json:"requester_id"`
	RequesterName          string   `json:"requester_name"`
	RequesterNationalID    string   `json:"requester_national_id"`
	RequesterDesignation   string   `json:"requester_designation"`
	RequesterExtension     string   `json:"requester_extension"`
	DepartmentID           uint64   `json:"department_id"`
	CategoryID             uint64   `json:"category_id"`
	RequiresDeputyApproval bool     `json:"requires_deputy_approval"`
	FactorID               *uint64  `json:"factor_id,omitempty"`
	Issue                  string   `json:"issue"`
	Reason                 *string  `json:"reason,omitempty"`
	Status                 int      `json:"status"`
	StatusLabel            string   `json:"status_label"`
	AssignedTechnicianID   *uint64  `json:"assigned_technician_id,omitempty"`
	VendorAdminID          *uint64  `json:"vendor_admin_id,omitempty"`
	RejectionReason        *string  `json:"rejection_reason,omitempty"`
	RedirectReason         *string  `json:"redirect_reason,omitempty"`
	Remark                 *string  `json:"remark,omitempty"`
	Version                int      `json:"version"`
	AvailableActions       []string `json:"available_actions"`
	CanWithdraw            bool     `json:"can_withdraw"`
	CreatedAt              string   `json:"created_at"`
	UpdatedAt              string   `json:"updated_at"`
}

type TimelineEntryDTO struct {
	ID          uint64  `json:"id"`
	Status      int     `json:"status"`
	StatusLabel string  `json:"status_label"`
	ActionKind  string  `json:"action_kind"`
	Remark      *string `json:"remark,omitempty"`
	ActorID     *uint64 `json:"actor_id,omitempty"`
	ActorName   *string `json:"actor_name,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type AttachmentResponseDTO struct {
	ID        uint64 `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	FileSize  int64  `json:"file_size"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

type CategoryDTO struct {
	ID                     uint64 `json:"id"`
	Name                   string `json:"name"`
	RequiresDeputyApproval bool   `json:"requires_deputy_approval"`
}
