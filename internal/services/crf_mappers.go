package services

import (
	"database/sql"

	"crf-system/internal/dto"
	"crf-system/internal/entities"
	"crf-system/internal/repositories"
)

const timeFormat = "2006-01-02 15:04:05"

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func crfListItemToDTO(item *repositories.CRFListItem) dto.CRFSummaryDTO {
	return dto.CRFSummaryDTO{
		ID:             item.ID,
		CRFNumber:      item.CRFNumber,
		RequesterID:    item.RequesterID,
		RequesterName:  item.RequesterName,
		DepartmentID:   item.DepartmentID,
		DepartmentName: item.DepartmentName.String,
		CategoryID:     item.CategoryID,
		CategoryName:   item.CategoryName.String,
		FactorName:     nullStringPtr(item.FactorName),
		Issue:          item.Issue,
		Status:         int(item.Status),
		StatusLabel:    item.Status.Label(),
		TechnicianName: nullStringPtr(item.TechnicianName),
		CreatedAt:      item.CreatedAt.Format(timeFormat),
		UpdatedAt:      item.UpdatedAt.Format(timeFormat),
	}
}

func CRFToDetailDTO(crf *entities.CRF) *dto.CRFDetailDTO {
	return &dto.CRFDetailDTO{
		ID:                     crf.ID,
		CRFNumber:              crf.CRFNumber,
		RequesterID:            crf.RequesterID,
		RequesterName:          crf.RequesterName,
		RequesterNationalID:    crf.RequesterNationalID,
		RequesterDesignation:   crf.RequesterDesignation,
		RequesterExtension:     crf.RequesterExtension,
		DepartmentID:           crf.DepartmentID,
		CategoryID:             crf.CategoryID,
		RequiresDeputyApproval: crf.RequiresDeputyApproval,
		FactorID:               crf.FactorID,
		Issue:                  crf.Issue,
		Reason:                 crf.Reason,
		Status:                 int(crf.Status),
		StatusLabel:            crf.Status.Label(),
		AssignedTechnicianID:   crf.AssignedTechnicianID,
		VendorAdminID:          crf.VendorAdminID,
		RejectionReason:        crf.RejectionReason,
		RedirectReason:         crf.RedirectReason,
		Remark:                 crf.Remark,
		Version:                crf.Version,
		AvailableActions:       []string{},
		CreatedAt:              crf.CreatedAt.Format(timeFormat),
		UpdatedAt:              crf.UpdatedAt.Format(timeFormat),
	}
}

func TimelineEntryToDTO(e *entities.TimelineEntry) dto.TimelineEntryDTO {
	return dto.TimelineEntryDTO{
		ID:          e.ID,
		Status:      int(e.Status),
		StatusLabel: e.StatusLabel,
		ActionKind:  e.ActionKind,
		Remark:      e.Remark,
		ActorID:     e.ActorID,
		ActorName:   e.ActorName,
		CreatedAt:   e.CreatedAt.Format(timeFormat),
	}
}

func AttachmentToDTO(a *entities.Attachment) dto.AttachmentResponseDTO {
	return dto.AttachmentResponseDTO{
		ID:        a.ID,
		FileName:  a.FileName,
		MimeType:  a.MimeType,
		FileSize:  a.FileSize,
		URL:       "/uploads/" + a.FilePath,
		CreatedAt: a.CreatedAt.Format(timeFormat),
	}
}

func CategoryToDTO(c *entities.Category) dto.CategoryDTO {
	return dto.CategoryDTO{
		ID:                     c.ID,
		Name:                   c.Name,
		RequiresDeputyApproval: c.RequiresDeputyApproval,
	}
}

func FailedNotificationToDTO(n *entities.NotificationIntent) dto.FailedNotificationDTO {
	return dto.FailedNotificationDTO{
		ID:          n.ID,
		EventID:     n.EventID,
		CRFID:       n.CRFID,
		TemplateKey: n.TemplateKey,
		Status:      n.Status,
		Attempts:    n.Attempts,
		LastError:   n.LastError,
		AvailableAt: n.AvailableAt.Format(timeFormat),
		CreatedAt:   n.CreatedAt.Format(timeFormat),
	}
}
