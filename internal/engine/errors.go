package engine

import "errors"

// Ошибки валидации графа blueprint'а.
var (
	// ErrEmptyGraph — граф не содержит узлов.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrEmptyEdgeID — ребро не имеет ID.
	ErrEmptyEdgeID = errors.New("edge has empty ID")

	// ErrDuplicateEdgeID — несколько рёбер с одинаковым ID.
	ErrDuplicateEdgeID = errors.New("duplicate edge ID")

	// ErrUnknownNode — ребро ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("edge references unknown node")

	// ErrUnknownHandle — ребро ссылается на несуществующий handle.
	ErrUnknownHandle = errors.New("edge references unknown handle")

	// ErrHandleDirection — source-handle использован как target или наоборот.
	ErrHandleDirection = errors.New("handle used in wrong direction")

	// ErrIncompatibleSocket — target не принимает socket_type источника.
	ErrIncompatibleSocket = errors.New("incompatible socket types")

	// ErrUnknownDefinition — узел ссылается на несуществующее определение.
	ErrUnknownDefinition = errors.New("node references unknown definition")

	// ErrSelfLoop — ребро из узла в самого себя.
	ErrSelfLoop = errors.New("edge connects node to itself")

	// ErrCyclicGraph — в графе есть цикл.
	ErrCyclicGraph = errors.New("cyclic graph detected")

	// ErrNoStartNodes — нет узлов без входящих рёбер.
	ErrNoStartNodes = errors.New("graph has no start nodes")

	// ErrUnknownEdgeType — неизвестный тип ребра.
	ErrUnknownEdgeType = errors.New("unknown edge type")
)

// Ошибки валидации определения узла.
var (
	// ErrEmptyDefinitionID — определение не имеет ID.
	ErrEmptyDefinitionID = errors.New("definition has empty ID")

	// ErrNoExecutables — определению нечего запускать.
	ErrNoExecutables = errors.New("definition has no executables")

	// ErrInvalidHandle — handle без ID или с неизвестным типом.
	ErrInvalidHandle = errors.New("invalid handle")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ErrUnsupportedFormat — неизвестный формат документа.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	EdgeID  string // ID ребра, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	switch {
	case e.EdgeID != "":
		return "edge " + e.EdgeID + ": " + e.Message
	case e.NodeID != "":
		return "node " + e.NodeID + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку валидации узла.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// NewEdgeError создаёт ошибку валидации ребра.
func NewEdgeError(edgeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		EdgeID:  edgeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
