package authz

import (
	"fmt"

	"crf-system/internal/entities"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
)

// Context - данные, по которым принимается решение.
type Context struct {
	Actor  *entities.User
	CRF    *entities.CRF
	Target *entities.User // назначаемый пользователь, если действие его требует
}

// Router решает, кто может действовать и кто что видит. ID подразделения ИТ
// передается явно, а не ищется по названию.
type Router struct {
	rules          []Rule
	itDepartmentID uint64
}

func NewRouter(itDepartmentID uint64) *Router {
	return &Router{rules: Rules, itDepartmentID: itDepartmentID}
}

// NewRouterWithRules - для тестов с урезанной таблицей.
func NewRouterWithRules(itDepartmentID uint64, rules []Rule) *Router {
	return &Router{rules: rules, itDepartmentID: itDepartmentID}
}

func (r *Router) ITDepartmentID() uint64 {
	return r.itDepartmentID
}

// IsITHead - HOU, чье подразделение совпадает с подразделением ИТ.
func (r *Router) IsITHead(actor *entities.User) bool {
	return actor != nil && actor.HasRole(constants.RoleDeptHead) && actor.DepartmentID == r.itDepartmentID
}

// actorQualifies проверяет роль и отношение пользователя к заявке.
func (r *Router) actorQualifies(rule *Rule, actor *entities.User, crf *entities.CRF) bool {
	if !actor.HasAnyRole(rule.Roles...) {
		return false
	}
	switch rule.Actor {
	case ActorOwnDepartment:
		return actor.DepartmentID == crf.DepartmentID
	case ActorITHead:
		return r.IsITHead(actor)
	case ActorSelfAssignee:
		return crf.IsAssignee(actor.ID)
	case ActorSelfVendorAdmin:
		return crf.IsVendorAdmin(actor.ID)
	}
	return true
}

func (r *Router) stateQualifies(rule *Rule, crf *entities.CRF) bool {
	if !rule.allowsStatus(crf.Status) {
		return false
	}
	switch rule.Category {
	case CategoryDeputy:
		if !crf.RequiresDeputyApproval {
			return false
		}
	case CategoryNonDeputy:
		if crf.RequiresDeputyApproval {
			return false
		}
	}
	if rule.RequestDept == RequestDeptIT && crf.DepartmentID != r.itDepartmentID {
		return false
	}
	return true
}

func targetQualifies(rule *Rule, target *entities.User) bool {
	if rule.TargetRole == "" {
		return true
	}
	return target != nil && target.HasRole(rule.TargetRole)
}

// Authorize находит правило, по которому пользователь может выполнить действие.
// ErrUnauthorized - у пользователя нет ни одного правила для действия (роль/владение)
// или статус допускает действие только руководителю подразделения заявки;
// ErrInvalidTransition - правила есть, но текущее состояние их не допускает.
func (r *Router) Authorize(c Context, action constants.Action) (*Rule, error) {
	if c.Actor == nil || c.CRF == nil {
		return nil, apperrors.ErrUnauthorized
	}

	var candidates []*Rule
	for _, rule := range RulesFor(r.rules, action) {
		if r.actorQualifies(rule, c.Actor, c.CRF) {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", action, apperrors.ErrUnauthorized)
	}

	targetMismatch := false
	for _, rule := range candidates {
		if !r.stateQualifies(rule, c.CRF) {
			continue
		}
		if !targetQualifies(rule, c.Target) {
			targetMismatch = true
			continue
		}
		return rule, nil
	}

	if targetMismatch {
		return nil, apperrors.NewInvalidInputError("назначаемый пользователь не обладает нужной ролью")
	}
	if r.foreignDepartment(c, action) {
		return nil, fmt.Errorf("%s: заявка чужого подразделения: %w", action, apperrors.ErrUnauthorized)
	}
	return nil, fmt.Errorf("%s из статуса %d: %w", action, c.CRF.Status, apperrors.ErrInvalidTransition)
}

// foreignDepartment - в текущем статусе действие доступно только руководителю
// подразделения заявки, а пользователь с той же ролью из другого подразделения.
func (r *Router) foreignDepartment(c Context, action constants.Action) bool {
	for _, rule := range RulesFor(r.rules, action) {
		if rule.Actor != ActorOwnDepartment || !r.stateQualifies(rule, c.CRF) {
			continue
		}
		if c.Actor.HasAnyRole(rule.Roles...) && c.Actor.DepartmentID != c.CRF.DepartmentID {
			return true
		}
	}
	return false
}

// NeedsTarget - для действия требуется назначаемый пользователь.
func NeedsTarget(action constants.Action) bool {
	for _, rule := range RulesFor(Rules, action) {
		if rule.TargetRole != "" {
			return true
		}
	}
	return false
}

// AvailableActions - действия, которые пользователь может совершить над заявкой прямо сейчас
// (без учета назначаемого пользователя).
func (r *Router) AvailableActions(actor *entities.User, crf *entities.CRF) []constants.Action {
	seen := make(map[constants.Action]bool)
	var out []constants.Action
	for i := range r.rules {
		rule := &r.rules[i]
		if seen[rule.Action] {
			continue
		}
		if r.actorQualifies(rule, actor, crf) && r.stateQualifies(rule, crf) {
			seen[rule.Action] = true
			out = append(out, rule.Action)
		}
	}
	return out
}

// Recipients превращает круг получателей правила в запросы к справочнику пользователей.
// crf - состояние заявки уже после перехода.
func (r *Router) Recipients(kinds []Recipient, crf *entities.CRF) []entities.RecipientQuery {
	var out []entities.RecipientQuery
	itDept := r.itDepartmentID
	for _, kind := range kinds {
		switch kind {
		case NotifyDeptHeads:
			dept := crf.DepartmentID
			out = append(out, entities.RecipientQuery{Role: constants.RoleDeptHead, DepartmentID: &dept})
		case NotifyITHeads:
			out = append(out, entities.RecipientQuery{Role: constants.RoleDeptHead, DepartmentID: &itDept})
		case NotifyDeputyDirectors:
			out = append(out, entities.RecipientQuery{Role: constants.RoleDeputyDirector})
		case NotifyNextApprover:
			if crf.RequiresDeputyApproval {
				out = append(out, entities.RecipientQuery{Role: constants.RoleDeputyDirector})
			} else {
				out = append(out, entities.RecipientQuery{Role: constants.RoleDeptHead, DepartmentID: &itDept})
			}
		case NotifyITAcknowledgers:
			out = append(out, entities.RecipientQuery{Role: constants.RoleITAcknowledger})
		case NotifyITAssigners:
			out = append(out, entities.RecipientQuery{Role: constants.RoleITAssigner})
		case NotifyRequester:
			id := crf.RequesterID
			out = append(out, entities.RecipientQuery{UserID: &id})
		case NotifyAssignee:
			if crf.AssignedTechnicianID != nil {
				id := *crf.AssignedTechnicianID
				out = append(out, entities.RecipientQuery{UserID: &id})
			}
		case NotifyVendorAdmin:
			if crf.VendorAdminID != nil {
				id := *crf.VendorAdminID
				out = append(out, entities.RecipientQuery{UserID: &id})
			}
		}
	}
	return out
}

// CreationRecipients - о новой заявке узнают HOU ее подразделения.
func (r *Router) CreationRecipients(crf *entities.CRF) []entities.RecipientQuery {
	return r.Recipients([]Recipient{NotifyDeptHeads}, crf)
}
