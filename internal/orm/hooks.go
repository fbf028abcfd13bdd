package orm

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// HookType represents different types of database hooks
type HookType string

const (
	HookBeforeCreate HookType = "before_create"
	HookAfterCreate  HookType = "after_create"
	HookBeforeUpdate HookType = "before_update"
	HookAfterUpdate  HookType = "after_update"
	HookBeforeDelete HookType = "before_delete"
	HookAfterDelete  HookType = "after_delete"
)

// HookContext contains information passed to hooks
type HookContext struct {
	Type      HookType
	TableName string
	Record    interface{}
	Query     string
	Error     error
	StartTime time.Time
	Duration  time.Duration
	Context   context.Context
}

// Hook represents a database hook function
type Hook func(*HookContext) error

// AuditFunc receives every completed write
type AuditFunc func(operation, table string, record interface{}, err error, duration time.Duration)

type hookManager struct {
	hooks map[HookType][]Hook
}

func newHookManager() *hookManager {
	return &hookManager{
		hooks: make(map[HookType][]Hook),
	}
}

func (hm *hookManager) add(hookType HookType, hook Hook) {
	hm.hooks[hookType] = append(hm.hooks[hookType], hook)
}

func (hm *hookManager) execute(hookCtx *HookContext) error {
	for _, hook := range hm.hooks[hookCtx.Type] {
		if err := hook(hookCtx); err != nil {
			return fmt.Errorf("hook execution failed for %s: %w", hookCtx.Type, err)
		}
	}
	return nil
}

// addHook registers a hook on the repository
func (r *Repository[T]) addHook(hookType HookType, hook Hook) {
	if r.hookManager == nil {
		r.hookManager = newHookManager()
	}
	r.hookManager.add(hookType, hook)
}

func (r *Repository[T]) executeBeforeHook(hookType HookType, ctx context.Context, record interface{}, query string) error {
	if r.hookManager == nil {
		return nil
	}

	return r.hookManager.execute(&HookContext{
		Type:      hookType,
		TableName: r.tableName,
		Record:    record,
		Query:     query,
		StartTime: time.Now(),
		Context:   ctx,
	})
}

func (r *Repository[T]) executeAfterHook(hookType HookType, ctx context.Context, record interface{}, query string, err error, duration time.Duration) error {
	if r.hookManager == nil {
		return nil
	}

	return r.hookManager.execute(&HookContext{
		Type:      hookType,
		TableName: r.tableName,
		Record:    record,
		Query:     query,
		Error:     err,
		StartTime: time.Now().Add(-duration),
		Duration:  duration,
		Context:   ctx,
	})
}

// timestampHook fills a zero CreatedAt on create
func timestampHook(ctx *HookContext) error {
	if ctx.Type != HookBeforeCreate || ctx.Record == nil {
		return nil
	}

	recordValue := reflect.ValueOf(ctx.Record)
	if recordValue.Kind() == reflect.Ptr {
		recordValue = recordValue.Elem()
	}
	if recordValue.Kind() != reflect.Struct {
		return nil
	}

	field := recordValue.FieldByName("CreatedAt")
	if !field.IsValid() || !field.CanSet() || field.Type() != reflect.TypeOf(time.Time{}) {
		return nil
	}
	if field.Interface().(time.Time).IsZero() {
		field.Set(reflect.ValueOf(time.Now().UTC()))
	}

	return nil
}

// auditHook forwards completed writes to fn
func auditHook(fn AuditFunc) Hook {
	return func(ctx *HookContext) error {
		switch ctx.Type {
		case HookAfterCreate, HookAfterUpdate, HookAfterDelete:
			fn(string(ctx.Type), ctx.TableName, ctx.Record, ctx.Error, ctx.Duration)
		}
		return nil
	}
}

// SetupCommonHooks configures timestamp handling
func (r *Repository[T]) SetupCommonHooks() {
	r.addHook(HookBeforeCreate, timestampHook)
}

// SetupAuditHooks configures audit logging of writes
func (r *Repository[T]) SetupAuditHooks(fn AuditFunc) {
	hook := auditHook(fn)
	r.addHook(HookAfterCreate, hook)
	r.addHook(HookAfterUpdate, hook)
	r.addHook(HookAfterDelete, hook)
}
