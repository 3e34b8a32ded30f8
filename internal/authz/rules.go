// internal/authz/rules.go
package authz

import (
	"crf-system/pkg/constants"
)

// ActorCondition - кем должен быть пользователь относительно заявки.
type ActorCondition int

const (
	ActorAny             ActorCondition = iota
	ActorOwnDepartment                  // заявка из подразделения пользователя
	ActorITHead                         // руководитель подразделения ИТ (сравнение по ID подразделения)
	ActorSelfAssignee                   // пользователь - назначенный техник
	ActorSelfVendorAdmin                // пользователь - назначенный вендор-администратор
)

// CategoryCondition - требование к категории заявки.
type CategoryCondition int

const (
	CategoryAny    CategoryCondition = iota
	CategoryDeputy                   // категория требует согласования заместителя директора
	CategoryNonDeputy
)

// DepartmentCondition - требование к подразделению заявки.
type DepartmentCondition int

const (
	RequestDeptAny DepartmentCondition = iota
	RequestDeptIT
)

// Effect - побочное изменение полей заявки при срабатывании правила.
type Effect int

const (
	EffectStampDeptApproval Effect = iota + 1
	EffectStampDeputyApproval
	EffectStampITHeadApproval
	EffectStampRejection
	EffectStampRedirect
	EffectSetTechnician
	EffectSetVendorAdmin
	EffectClearVendorAdmin
	EffectSetRemark
	EffectSetFactor
)

// Recipient - круг получателей уведомления о переходе.
type Recipient int

const (
	NotifyDeptHeads       Recipient = iota + 1 // HOU подразделения заявки
	NotifyITHeads                              // HOU подразделения ИТ
	NotifyDeputyDirectors                      // заместители директора
	NotifyNextApprover                         // заместитель или руководитель ИТ, в зависимости от категории
	NotifyITAcknowledgers
	NotifyITAssigners
	NotifyRequester
	NotifyAssignee
	NotifyVendorAdmin
)

// Rule - строка таблицы переходов. Таблица - единственный источник правды
// и для авторизации действий, и для видимости заявок.
type Rule struct {
	Name        string
	Action      constants.Action
	Roles       []string // достаточно любой из ролей
	Actor       ActorCondition
	From        []constants.CRFStatus
	Category    CategoryCondition
	RequestDept DepartmentCondition
	TargetRole  string              // роль, обязательная для назначаемого пользователя
	Next        constants.CRFStatus // 0 - статус не меняется
	Effects     []Effect
	Notify      []Recipient
}

// KeepsStatus - правило меняет только поля, но не статус.
func (r *Rule) KeepsStatus() bool {
	return r.Next == 0
}

// HasEffect проверяет, входит ли эффект в правило.
func (r *Rule) HasEffect(e Effect) bool {
	for _, x := range r.Effects {
		if x == e {
			return true
		}
	}
	return false
}

func (r *Rule) allowsStatus(s constants.CRFStatus) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

var technicianRoles = []string{constants.RoleInternalTechnician, constants.RoleExternalTechnician}

// statuses, на которых заявка находится в работе у ИТ
var itProcessingStatuses = []constants.CRFStatus{
	constants.StatusITAcknowledged,
	constants.StatusAssignedInternal,
	constants.StatusAssignedExternal,
	constants.StatusReassignedInternal,
	constants.StatusReassignedExternal,
	constants.StatusInProgress,
	constants.StatusAssignedToExternalLead,
}

var technicianWorkStatuses = []constants.CRFStatus{
	constants.StatusAssignedInternal,
	constants.StatusAssignedExternal,
	constants.StatusReassignedInternal,
	constants.StatusReassignedExternal,
	constants.StatusInProgress,
	constants.StatusAssignedToExternalLead,
}

var itOpenStatuses = []constants.CRFStatus{
	constants.StatusApprovedByITHead,
	constants.StatusApprovedByDeputyDirector,
	constants.StatusITAcknowledged,
	constants.StatusAssignedInternal,
	constants.StatusAssignedExternal,
	constants.StatusReassignedInternal,
	constants.StatusReassignedExternal,
	constants.StatusInProgress,
	constants.StatusAssignedToVendorAdmin,
	constants.StatusRedirectedToIT,
	constants.StatusAssignedToExternalLead,
}

// Rules - упорядоченная таблица переходов. Для действия побеждает первое
// правило, чьи условия выполнены.
var Rules = []Rule{
	// Руководитель ИТ одобряет заявку своего подразделения: сразу в ApprovedByITHead
	{
		Name:        "it-head-own-approve",
		Action:      constants.ActionApproveDept,
		Roles:       []string{constants.RoleDeptHead},
		Actor:       ActorITHead,
		From:        []constants.CRFStatus{constants.StatusCreated},
		Category:    CategoryNonDeputy,
		RequestDept: RequestDeptIT,
		Next:        constants.StatusApprovedByITHead,
		Effects:     []Effect{EffectStampDeptApproval, EffectStampITHeadApproval},
		Notify:      []Recipient{NotifyITAcknowledgers, NotifyRequester},
	},
	{
		Name:     "it-head-approve-after-dept",
		Action:   constants.ActionApproveDept,
		Roles:    []string{constants.RoleDeptHead},
		Actor:    ActorITHead,
		From:     []constants.CRFStatus{constants.StatusApprovedByDeptHead},
		Category: CategoryNonDeputy,
		Next:     constants.StatusApprovedByITHead,
		Effects:  []Effect{EffectStampITHeadApproval},
		Notify:   []Recipient{NotifyITAcknowledgers, NotifyRequester},
	},
	{
		Name:    "it-head-approve-after-deputy-or-redirect",
		Action:  constants.ActionApproveDept,
		Roles:   []string{constants.RoleDeptHead},
		Actor:   ActorITHead,
		From:    []constants.CRFStatus{constants.StatusApprovedByDeputyDirector, constants.StatusRedirectedToIT},
		Next:    constants.StatusApprovedByITHead,
		Effects: []Effect{EffectStampITHeadApproval},
		Notify:  []Recipient{NotifyITAcknowledgers, NotifyRequester},
	},
	{
		Name:    "dept-head-approve",
		Action:  constants.ActionApproveDept,
		Roles:   []string{constants.RoleDeptHead},
		Actor:   ActorOwnDepartment,
		From:    []constants.CRFStatus{constants.StatusCreated, constants.StatusRedirectedToIT},
		Next:    constants.StatusApprovedByDeptHead,
		Effects: []Effect{EffectStampDeptApproval},
		Notify:  []Recipient{NotifyNextApprover},
	},
	{
		Name:     "deputy-approve",
		Action:   constants.ActionApproveDeputy,
		Roles:    []string{constants.RoleDeputyDirector},
		From:     []constants.CRFStatus{constants.StatusApprovedByDeptHead},
		Category: CategoryDeputy,
		Next:     constants.StatusApprovedByDeputyDirector,
		Effects:  []Effect{EffectStampDeputyApproval},
		Notify:   []Recipient{NotifyITHeads},
	},

	{
		Name:     "it-head-reject-after-dept",
		Action:   constants.ActionReject,
		Roles:    []string{constants.RoleDeptHead},
		Actor:    ActorITHead,
		From:     []constants.CRFStatus{constants.StatusApprovedByDeptHead},
		Category: CategoryNonDeputy,
		Next:     constants.StatusRejectedByITHead,
		Effects:  []Effect{EffectStampRejection},
		Notify:   []Recipient{NotifyRequester},
	},
	{
		Name:    "it-head-reject-after-deputy",
		Action:  constants.ActionReject,
		Roles:   []string{constants.RoleDeptHead},
		Actor:   ActorITHead,
		From:    []constants.CRFStatus{constants.StatusApprovedByDeputyDirector},
		Next:    constants.StatusRejectedByITHead,
		Effects: []Effect{EffectStampRejection},
		Notify:  []Recipient{NotifyRequester},
	},
	{
		Name:    "dept-head-reject",
		Action:  constants.ActionReject,
		Roles:   []string{constants.RoleDeptHead},
		Actor:   ActorOwnDepartment,
		From:    []constants.CRFStatus{constants.StatusCreated, constants.StatusRedirectedToIT},
		Next:    constants.StatusRejectedByDeptHead,
		Effects: []Effect{EffectStampRejection},
		Notify:  []Recipient{NotifyRequester},
	},
	{
		Name:     "deputy-reject",
		Action:   constants.ActionReject,
		Roles:    []string{constants.RoleDeputyDirector},
		From:     []constants.CRFStatus{constants.StatusApprovedByDeptHead},
		Category: CategoryDeputy,
		Next:     constants.StatusRejectedByDeputyDirector,
		Effects:  []Effect{EffectStampRejection},
		Notify:   []Recipient{NotifyRequester},
	},

	{
		Name:   "it-acknowledge",
		Action: constants.ActionAcknowledge,
		Roles:  []string{constants.RoleITAcknowledger},
		From:   []constants.CRFStatus{constants.StatusApprovedByITHead, constants.StatusApprovedByDeputyDirector},
		Next:   constants.StatusITAcknowledged,
		Notify: []Recipient{NotifyITAssigners},
	},
	{
		Name:       "assign-internal",
		Action:     constants.ActionAssignInternal,
		Roles:      []string{constants.RoleITAssigner},
		From:       []constants.CRFStatus{constants.StatusITAcknowledged},
		TargetRole: constants.RoleInternalTechnician,
		Next:       constants.StatusAssignedInternal,
		Effects:    []Effect{EffectSetTechnician},
		Notify:     []Recipient{NotifyAssignee},
	},
	{
		Name:       "assign-external",
		Action:     constants.ActionAssignExternal,
		Roles:      []string{constants.RoleITAssigner},
		From:       []constants.CRFStatus{constants.StatusITAcknowledged},
		TargetRole: constants.RoleExternalTechnician,
		Next:       constants.StatusAssignedExternal,
		Effects:    []Effect{EffectSetTechnician},
		Notify:     []Recipient{NotifyAssignee},
	},
	// передача вендору намеренно ограничена статусами обработки в ИТ
	{
		Name:       "assign-vendor-admin",
		Action:     constants.ActionAssignToVendorAdmin,
		Roles:      []string{constants.RoleDispatcher},
		From:       itProcessingStatuses,
		TargetRole: constants.RoleVendorAdmin,
		Next:       constants.StatusAssignedToVendorAdmin,
		Effects:    []Effect{EffectSetVendorAdmin},
		Notify:     []Recipient{NotifyVendorAdmin},
	},
	{
		Name:    "vendor-redirect-to-it",
		Action:  constants.ActionRedirectToIT,
		Roles:   []string{constants.RoleVendorAdmin},
		Actor:   ActorSelfVendorAdmin,
		From:    []constants.CRFStatus{constants.StatusAssignedToVendorAdmin},
		Next:    constants.StatusRedirectedToIT,
		Effects: []Effect{EffectStampRedirect, EffectClearVendorAdmin},
		Notify:  []Recipient{NotifyITHeads},
	},
	{
		Name:       "vendor-assign-external-lead",
		Action:     constants.ActionAssignExternalLead,
		Roles:      []string{constants.RoleVendorAdmin},
		Actor:      ActorSelfVendorAdmin,
		From:       []constants.CRFStatus{constants.StatusAssignedToVendorAdmin},
		TargetRole: constants.RoleExternalTechnician,
		Next:       constants.StatusAssignedToExternalLead,
		Effects:    []Effect{EffectSetTechnician},
		Notify:     []Recipient{NotifyAssignee},
	},
	{
		Name:   "reassign-internal",
		Action: constants.ActionReassign,
		Roles:  []string{constants.RoleDispatcher, constants.RoleITAdmin},
		From: []constants.CRFStatus{
			constants.StatusAssignedInternal, constants.StatusReassignedInternal, constants.StatusInProgress,
		},
		TargetRole: constants.RoleInternalTechnician,
		Next:       constants.StatusReassignedInternal,
		Effects:    []Effect{EffectSetTechnician},
		Notify:     []Recipient{NotifyAssignee},
	},
	{
		Name:   "reassign-external",
		Action: constants.ActionReassign,
		Roles:  []string{constants.RoleDispatcher, constants.RoleITAdmin},
		From: []constants.CRFStatus{
			constants.StatusAssignedExternal, constants.StatusReassignedExternal,
			constants.StatusInProgress, constants.StatusAssignedToVendorAdmin,
		},
		TargetRole: constants.RoleExternalTechnician,
		Next:       constants.StatusReassignedExternal,
		Effects:    []Effect{EffectSetTechnician},
		Notify:     []Recipient{NotifyAssignee},
	},
	{
		Name:   "technician-start",
		Action: constants.ActionMarkInProgress,
		Roles:  technicianRoles,
		Actor:  ActorSelfAssignee,
		From: []constants.CRFStatus{
			constants.StatusAssignedInternal, constants.StatusAssignedExternal,
			constants.StatusReassignedInternal, constants.StatusReassignedExternal,
			constants.StatusAssignedToExternalLead,
		},
		Next:   constants.StatusInProgress,
		Notify: []Recipient{NotifyRequester},
	},
	{
		Name:   "technician-close",
		Action: constants.ActionMarkClosed,
		Roles:  technicianRoles,
		Actor:  ActorSelfAssignee,
		From:   []constants.CRFStatus{constants.StatusInProgress},
		Next:   constants.StatusClosed,
		Notify: []Recipient{NotifyRequester},
	},

	{
		Name:    "it-staff-remark",
		Action:  constants.ActionUpdateRemark,
		Roles:   []string{constants.RoleITAdmin, constants.RoleDispatcher, constants.RoleITAssigner},
		From:    itOpenStatuses,
		Effects: []Effect{EffectSetRemark},
		Notify:  []Recipient{NotifyRequester},
	},
	{
		Name:    "technician-remark",
		Action:  constants.ActionUpdateRemark,
		Roles:   technicianRoles,
		Actor:   ActorSelfAssignee,
		From:    technicianWorkStatuses,
		Effects: []Effect{EffectSetRemark},
		Notify:  []Recipient{NotifyRequester},
	},
	{
		Name:    "it-staff-factor",
		Action:  constants.ActionUpdateFactor,
		Roles:   []string{constants.RoleITAdmin, constants.RoleITAssigner, constants.RoleITAcknowledger},
		From:    itOpenStatuses,
		Effects: []Effect{EffectSetFactor},
	},
}

// RulesFor возвращает правила для действия в порядке таблицы.
func RulesFor(rules []Rule, action constants.Action) []*Rule {
	var out []*Rule
	for i := range rules {
		if rules[i].Action == action {
			out = append(out, &rules[i])
		}
	}
	return out
}
