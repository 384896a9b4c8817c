package domain

import "time"

// ActionKind — закрытый набор категорий действий агента.
// Используется как ключ авторизации в паре с ролью.
type ActionKind string

const (
	ActionQuery       ActionKind = "query"             // Чтение данных
	ActionDataModify  ActionKind = "data_modification" // Изменение данных во внешних системах
	ActionCommunicate ActionKind = "communication"     // Отправка сообщений клиентам/агентам
	ActionSystem      ActionKind = "system"            // Системные операции (конфиги, перезапуски)
	ActionAutonomous  ActionKind = "autonomous"        // Самостоятельные действия без запроса оператора
)

// ActionKinds — полный список видов действий (для построения дефолтной политики и валидации).
var ActionKinds = []ActionKind{ActionQuery, ActionDataModify, ActionCommunicate, ActionSystem, ActionAutonomous}

// Valid отсекает произвольные строки на входе Console API.
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// PermissionLevel — полностью упорядоченный уровень доступа: read < execute < write < admin.
// Сравнение уровней — обычное сравнение int, никакой дополнительной логики.
type PermissionLevel int

const (
	PermissionRead PermissionLevel = iota
	PermissionExecute
	PermissionWrite
	PermissionAdmin
)

func (l PermissionLevel) String() string {
	switch l {
	case PermissionRead:
		return "read"
	case PermissionExecute:
		return "execute"
	case PermissionWrite:
		return "write"
	case PermissionAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// RuleKey — составной ключ таблиц политики: роль + вид действия.
// Роль остается открытой строкой (конфигурируемость в рантайме),
// вид действия — закрытый тип (проверяется на этапе компиляции).
type RuleKey struct {
	Role string     `json:"role"`
	Kind ActionKind `json:"kind"`
}

// Policy — правило безопасности ядра координации.
// Rules: (role, kind) -> минимальный уровень, начиная с которого доступ разрешен.
// Approvals: (role, kind) -> требуется ли подтверждение человеком (HITL).
// Отсутствие записи в Rules означает запрет (Default Deny, Zero Trust).
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	Rules     map[RuleKey]PermissionLevel `json:"-"`
	Approvals map[RuleKey]bool            `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Allows — метод-интерпретатор. Гарантирует консервативный ответ,
// даже если объект политики не проинициализирован (Zero Trust).
func (p *Policy) Allows(role string, kind ActionKind, required PermissionLevel) bool {
	if p == nil || p.Rules == nil {
		return false
	}
	level, ok := p.Rules[RuleKey{Role: role, Kind: kind}]
	if !ok {
		return false
	}
	return level >= required
}

// NeedsApproval — при отсутствии политики или записи отвечаем "да":
// безопаснее лишний раз спросить человека, чем пропустить автономное действие.
func (p *Policy) NeedsApproval(role string, kind ActionKind) bool {
	if p == nil || p.Approvals == nil {
		return true
	}
	required, ok := p.Approvals[RuleKey{Role: role, Kind: kind}]
	if !ok {
		return true
	}
	return required
}
