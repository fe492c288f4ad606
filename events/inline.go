package events

import (
	"context"
	"sync"
)

// Inline roda cada tarefa na hora, dentro de Enqueue. Serve para testes e
// ferramentas de execução única, onde nenhum Dispatcher drena a fila.
type Inline struct {
	mu     sync.Mutex
	Ctx    context.Context
	Names  []string
	Errors []error
}

func (q *Inline) Enqueue(task Task) bool {
	ctx := q.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	err := safeRun(ctx, task)
	q.mu.Lock()
	q.Names = append(q.Names, task.Name)
	if err != nil {
		q.Errors = append(q.Errors, err)
	}
	q.mu.Unlock()
	return true
}

// Count devolve quantas tarefas com o nome dado passaram pela fila.
func (q *Inline) Count(name string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, got := range q.Names {
		if got == name {
			n++
		}
	}
	return n
}
