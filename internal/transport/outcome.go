package transport

import "fmt"

// Kind классифицирует отказ транспорта.
type Kind int

const (
	KindNetwork Kind = iota + 1 // запрос не дошел или ответ не вернулся
	KindHTTP                    // статус вне 2xx
	KindParse                   // тело ответа не разобралось
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Failure — неуспешный вариант Outcome. StatusCode == 0 означает, что статуса нет.
type Failure struct {
	Kind       Kind
	Message    string
	StatusCode int
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s error [%d]: %s", f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s error: %s", f.Kind, f.Message)
}

// Outcome — размеченное объединение: либо payload, либо failure. Никогда оба сразу.
type Outcome[T any] struct {
	payload T
	failure *Failure
}

func Success[T any](payload T) Outcome[T] {
	return Outcome[T]{payload: payload}
}

func Fail[T any](f *Failure) Outcome[T] {
	if f == nil {
		f = &Failure{Kind: KindNetwork, Message: "unknown failure"}
	}
	return Outcome[T]{failure: f}
}

func (o Outcome[T]) OK() bool { return o.failure == nil }

// Payload возвращает нулевое значение T для неуспешного результата.
func (o Outcome[T]) Payload() T { return o.payload }

func (o Outcome[T]) Failure() *Failure { return o.failure }

// Unwrap переводит Outcome в привычную для Go пару (value, error).
func (o Outcome[T]) Unwrap() (T, error) {
	if o.failure != nil {
		var zero T
		return zero, o.failure
	}
	return o.payload, nil
}
