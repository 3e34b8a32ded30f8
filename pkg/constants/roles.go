package constants

// Коды ролей. Совпадают с roles.code в БД.
const (
	RoleDeptHead           = "HOU"
	RoleDeputyDirector     = "TIMBALAN_PENGARAH"
	RoleITAcknowledger     = "IT_ACKNOWLEDGER"
	RoleITAssigner         = "IT_ASSIGNER"
	RoleDispatcher         = "DISPATCHER"
	RoleITAdmin            = "IT_ADMIN"
	RoleAdminOverride      = "ADMIN_OVERRIDE"
	RoleVendorAdmin        = "VENDOR_ADMIN"
	RoleInternalTechnician = "INTERNAL_TECHNICIAN"
	RoleExternalTechnician = "EXTERNAL_TECHNICIAN"
)

// AllRoles - для сидера и валидации.
var AllRoles = []string{
	RoleDeptHead,
	RoleDeputyDirector,
	RoleITAcknowledger,
	RoleITAssigner,
	RoleDispatcher,
	RoleITAdmin,
	RoleAdminOverride,
	RoleVendorAdmin,
	RoleInternalTechnician,
	RoleExternalTechnician,
}

// Action - действие над заявкой.
type Action string

const (
	ActionCreate              Action = "CREATE"
	ActionApproveDept         Action = "APPROVE_DEPT"
	ActionApproveDeputy       Action = "APPROVE_DEPUTY"
	ActionReject              Action = "REJECT"
	ActionAcknowledge         Action = "ACKNOWLEDGE"
	ActionAssignInternal      Action = "ASSIGN_INTERNAL"
	ActionAssignExternal      Action = "ASSIGN_EXTERNAL"
	ActionAssignToVendorAdmin Action = "ASSIGN_TO_VENDOR_ADMIN"
	ActionRedirectToIT        Action = "REDIRECT_TO_IT"
	ActionAssignExternalLead  Action = "ASSIGN_EXTERNAL_LEAD"
	ActionReassign            Action = "REASSIGN"
	ActionMarkInProgress      Action = "MARK_IN_PROGRESS"
	ActionMarkClosed          Action = "MARK_CLOSED"
	ActionUpdateRemark        Action = "UPDATE_REMARK"
	ActionUpdateFactor        Action = "UPDATE_FACTOR"
)

// ApplicableActions - действия, которые можно передать в applyAction.
var ApplicableActions = []Action{
	ActionApproveDept,
	ActionApproveDeputy,
	ActionReject,
	ActionAcknowledge,
	ActionAssignInternal,
	ActionAssignExternal,
	ActionAssignToVendorAdmin,
	ActionRedirectToIT,
	ActionAssignExternalLead,
	ActionReassign,
	ActionMarkInProgress,
	ActionMarkClosed,
	ActionUpdateRemark,
	ActionUpdateFactor,
}

func IsApplicableAction(a string) bool {
	for _, x := range ApplicableActions {
		if string(x) == a {
			return true
		}
	}
	return false
}
