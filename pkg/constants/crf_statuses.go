package constants

// CRFStatus - статус заявки. Значения совпадают с кодами в БД.
type CRFStatus int

const (
	StatusCreated                  CRFStatus = 1
	StatusApprovedByITHead         CRFStatus = 2
	StatusITAcknowledged           CRFStatus = 3
	StatusAssignedInternal         CRFStatus = 4
	StatusAssignedExternal         CRFStatus = 5
	StatusReassignedInternal       CRFStatus = 6
	StatusReassignedExternal       CRFStatus = 7
	StatusInProgress               CRFStatus = 8
	StatusClosed                   CRFStatus = 9
	StatusApprovedByDeptHead       CRFStatus = 10
	StatusApprovedByDeputyDirector CRFStatus = 11
	StatusAssignedToVendorAdmin    CRFStatus = 12
	StatusRejectedByDeptHead       CRFStatus = 13
	StatusRejectedByDeputyDirector CRFStatus = 14
	StatusRejectedByITHead         CRFStatus = 15
	StatusRedirectedToIT           CRFStatus = 16
	StatusAssignedToExternalLead   CRFStatus = 17
)

var statusLabels = map[CRFStatus]string{
	StatusCreated:                  "Created",
	StatusApprovedByITHead:         "Approved by IT Head",
	StatusITAcknowledged:           "Acknowledged by IT",
	StatusAssignedInternal:         "Assigned to Internal Technician",
	StatusAssignedExternal:         "Assigned to External Technician",
	StatusReassignedInternal:       "Reassigned to Internal Technician",
	StatusReassignedExternal:       "Reassigned to External Technician",
	StatusInProgress:               "In Progress",
	StatusClosed:                   "Closed",
	StatusApprovedByDeptHead:       "Approved by Head of Department",
	StatusApprovedByDeputyDirector: "Approved by Deputy Director",
	StatusAssignedToVendorAdmin:    "Assigned to Vendor Admin",
	StatusRejectedByDeptHead:       "Rejected by Head of Department",
	StatusRejectedByDeputyDirector: "Rejected by Deputy Director",
	StatusRejectedByITHead:         "Rejected by IT Head",
	StatusRedirectedToIT:           "Redirected to IT",
	StatusAssignedToExternalLead:   "Assigned to External Lead",
}

// Label возвращает человекочитаемое название статуса.
func (s CRFStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// IsValid - статус входит в перечень известных значений.
func (s CRFStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Финальные статусы
var FinalStatuses = []CRFStatus{
	StatusClosed,
	StatusRejectedByDeptHead,
	StatusRejectedByDeputyDirector,
	StatusRejectedByITHead,
}

func IsFinalStatus(s CRFStatus) bool {
	for _, f := range FinalStatuses {
		if f == s {
			return true
		}
	}
	return false
}

// ITPipelineStatuses - статусы, начиная с одобрения руководителем ИТ, в порядке жизненного цикла.
var ITPipelineStatuses = []CRFStatus{
	StatusApprovedByITHead,
	StatusITAcknowledged,
	StatusAssignedInternal,
	StatusAssignedExternal,
	StatusReassignedInternal,
	StatusReassignedExternal,
	StatusInProgress,
	StatusClosed,
	StatusAssignedToVendorAdmin,
	StatusRedirectedToIT,
	StatusAssignedToExternalLead,
}
