package auth

import "context"

type subjectKey struct{}

// WithSubject 将调用方写入上下文。
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil || subject.Name == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, subject.Name)
}

// CallerFromContext 返回已通过鉴权的调用方名称；未鉴权时 ok 为 false。
func CallerFromContext(ctx context.Context) (name string, ok bool) {
	name, ok = ctx.Value(subjectKey{}).(string)
	return name, ok
}
