package authz

import (
	sq "github.com/Masterminds/squirrel"

	"crf-system/internal/entities"
	"crf-system/pkg/constants"
)

// Колонки, по которым строится предикат видимости в SQL.
// Запрос списка обязан выбирать заявки как "c" и категории как "cat".
const (
	colStatus         = "c.status"
	colDepartment     = "c.department_id"
	colAssignee       = "c.assigned_technician_id"
	colVendorAdmin    = "c.vendor_admin_id"
	colRequester      = "c.requester_id"
	colRequiresDeputy = "cat.requires_deputy_approval"
)

// Predicate - конъюнкция условий над полями заявки. Пустое поле - без ограничения.
type Predicate struct {
	Statuses       []constants.CRFStatus
	DepartmentID   *uint64
	AssigneeID     *uint64
	VendorAdminID  *uint64
	RequesterID    *uint64
	RequiresDeputy *bool
}

func (p Predicate) Matches(crf *entities.CRF) bool {
	if len(p.Statuses) > 0 {
		found := false
		for _, s := range p.Statuses {
			if s == crf.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.DepartmentID != nil && crf.DepartmentID != *p.DepartmentID {
		return false
	}
	if p.AssigneeID != nil && !crf.IsAssignee(*p.AssigneeID) {
		return false
	}
	if p.VendorAdminID != nil && !crf.IsVendorAdmin(*p.VendorAdminID) {
		return false
	}
	if p.RequesterID != nil && crf.RequesterID != *p.RequesterID {
		return false
	}
	if p.RequiresDeputy != nil && crf.RequiresDeputyApproval != *p.RequiresDeputy {
		return false
	}
	return true
}

func (p Predicate) sqlizer() sq.Sqlizer {
	and := sq.And{}
	if len(p.Statuses) > 0 {
		vals := make([]int, len(p.Statuses))
		for i, s := range p.Statuses {
			vals[i] = int(s)
		}
		and = append(and, sq.Eq{colStatus: vals})
	}
	if p.DepartmentID != nil {
		and = append(and, sq.Eq{colDepartment: *p.DepartmentID})
	}
	if p.AssigneeID != nil {
		and = append(and, sq.Eq{colAssignee: *p.AssigneeID})
	}
	if p.VendorAdminID != nil {
		and = append(and, sq.Eq{colVendorAdmin: *p.VendorAdminID})
	}
	if p.RequesterID != nil {
		and = append(and, sq.Eq{colRequester: *p.RequesterID})
	}
	if p.RequiresDeputy != nil {
		and = append(and, sq.Eq{colRequiresDeputy: *p.RequiresDeputy})
	}
	if len(and) == 0 {
		return sq.Expr("1=1")
	}
	return and
}

// Visibility - объединение предикатов: заявка видна, если подходит хотя бы под один.
type Visibility struct {
	Predicates []Predicate
	Override   bool
}

func (v Visibility) Matches(crf *entities.CRF) bool {
	for _, p := range v.Predicates {
		if p.Matches(crf) {
			return true
		}
	}
	return false
}

// Sqlizer - условие WHERE для списка заявок.
func (v Visibility) Sqlizer() sq.Sqlizer {
	if len(v.Predicates) == 0 {
		return sq.Expr("1=0")
	}
	or := sq.Or{}
	for _, p := range v.Predicates {
		or = append(or, p.sqlizer())
	}
	return or
}

func statusesOf(s ...constants.CRFStatus) []constants.CRFStatus { return s }

func boolPtr(b bool) *bool { return &b }

func uint64Ptr(v uint64) *uint64 { return &v }

// roleFeed - предикаты "только для чтения" для одной роли, сверх тех, что выводятся из правил.
type roleFeed struct {
	role  string
	build func(r *Router, actor *entities.User) []Predicate
}

var roleFeeds = []roleFeed{
	{constants.RoleDeptHead, func(r *Router, actor *entities.User) []Predicate {
		preds := []Predicate{{DepartmentID: uint64Ptr(actor.DepartmentID)}}
		if r.IsITHead(actor) {
			preds = append(preds, Predicate{
				Statuses: append(append([]constants.CRFStatus{}, constants.ITPipelineStatuses...), constants.StatusRejectedByITHead),
			})
		}
		return preds
	}},
	{constants.RoleDeputyDirector, func(r *Router, actor *entities.User) []Predicate {
		return []Predicate{{
			Statuses:       statusesOf(constants.StatusApprovedByDeptHead, constants.StatusApprovedByDeputyDirector, constants.StatusRejectedByDeputyDirector),
			RequiresDeputy: boolPtr(true),
		}}
	}},
	{constants.RoleITAcknowledger, func(r *Router, actor *entities.User) []Predicate {
		return []Predicate{{Statuses: statusesOf(constants.StatusITAcknowledged)}}
	}},
	{constants.RoleITAssigner, func(r *Router, actor *entities.User) []Predicate {
		return []Predicate{{Statuses: statusesOf(
			constants.StatusAssignedInternal, constants.StatusAssignedExternal,
			constants.StatusReassignedInternal, constants.StatusReassignedExternal,
			constants.StatusInProgress, constants.StatusClosed,
		)}}
	}},
	{constants.RoleDispatcher, func(r *Router, actor *entities.User) []Predicate {
		return []Predicate{{Statuses: statusesOf(constants.StatusClosed, constants.StatusRedirectedToIT)}}
	}},
	{constants.RoleITAdmin, func(r *Router, actor *entities.User) []Predicate {
		return []Predicate{{Statuses: constants.ITPipelineStatuses}}
	}},
	{constants.RoleVendorAdmin, func(r *Router, actor *entities.User) []Predicate {
		return []Predicate{{
			Statuses:      statusesOf(constants.StatusAssignedToExternalLead, constants.StatusInProgress, constants.StatusClosed),
			VendorAdminID: uint64Ptr(actor.ID),
		}}
	}},
	{constants.RoleInternalTechnician, technicianFeed},
	{constants.RoleExternalTechnician, technicianFeed},
}

func technicianFeed(r *Router, actor *entities.User) []Predicate {
	return []Predicate{{
		Statuses: statusesOf(
			constants.StatusAssignedInternal, constants.StatusAssignedExternal,
			constants.StatusReassignedInternal, constants.StatusReassignedExternal,
			constants.StatusAssignedToExternalLead, constants.StatusInProgress, constants.StatusClosed,
		),
		AssigneeID: uint64Ptr(actor.ID),
	}}
}

// Visibility строит предикат видимости пользователя.
// Порядок: роль ADMIN_OVERRIDE проверяется первой и отменяет все остальные роли;
// иначе объединяются предикаты из таблицы правил и ленты ролей.
// Свои заявки пользователь видит всегда.
func (r *Router) Visibility(actor *entities.User) Visibility {
	own := Predicate{RequesterID: uint64Ptr(actor.ID)}

	if actor.HasRole(constants.RoleAdminOverride) {
		return Visibility{
			Predicates: []Predicate{{Statuses: constants.ITPipelineStatuses}, own},
			Override:   true,
		}
	}

	preds := []Predicate{own}
	preds = append(preds, r.actionablePredicates(actor)...)
	for _, feed := range roleFeeds {
		if actor.HasRole(feed.role) {
			preds = append(preds, feed.build(r, actor)...)
		}
	}
	return Visibility{Predicates: preds}
}

// actionablePredicates выводит "могу действовать" из той же таблицы правил,
// что использует Authorize.
func (r *Router) actionablePredicates(actor *entities.User) []Predicate {
	var preds []Predicate
	for i := range r.rules {
		rule := &r.rules[i]
		if !actor.HasAnyRole(rule.Roles...) {
			continue
		}
		p := Predicate{Statuses: rule.From}
		switch rule.Actor {
		case ActorOwnDepartment:
			p.DepartmentID = uint64Ptr(actor.DepartmentID)
		case ActorITHead:
			if !r.IsITHead(actor) {
				continue
			}
		case ActorSelfAssignee:
			p.AssigneeID = uint64Ptr(actor.ID)
		case ActorSelfVendorAdmin:
			p.VendorAdminID = uint64Ptr(actor.ID)
		}
		switch rule.Category {
		case CategoryDeputy:
			p.RequiresDeputy = boolPtr(true)
		case CategoryNonDeputy:
			p.RequiresDeputy = boolPtr(false)
		}
		if rule.RequestDept == RequestDeptIT {
			p.DepartmentID = uint64Ptr(r.itDepartmentID)
		}
		preds = append(preds, p)
	}
	return preds
}

// CanView - проверка видимости одной заявки в памяти.
func (r *Router) CanView(actor *entities.User, crf *entities.CRF) bool {
	return r.Visibility(actor).Matches(crf)
}
