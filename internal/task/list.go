package task

import "slices"

// ListOptions 过滤 Store.List 的结果，结果总是按 updated_at 升序返回。
type ListOptions struct {
	Statuses      []Status
	Kind          Kind
	UpdatedBefore int64
	Limit         int
}

// ListOption 修改 ListOptions。
type ListOption func(*ListOptions)

func WithStatuses(statuses ...Status) ListOption {
	return func(o *ListOptions) { o.Statuses = append(o.Statuses, statuses...) }
}

func WithKind(kind Kind) ListOption {
	return func(o *ListOptions) { o.Kind = kind }
}

// WithUpdatedBefore 只返回 updated_at 早于 ts（Unix 秒）的任务。
func WithUpdatedBefore(ts int64) ListOption {
	return func(o *ListOptions) { o.UpdatedBefore = ts }
}

func WithLimit(limit int) ListOption {
	return func(o *ListOptions) { o.Limit = limit }
}

func buildListOptions(opts []ListOption) ListOptions {
	var o ListOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Limit <= 0 || o.Limit > 500 {
		o.Limit = 100
	}
	valid := o.Statuses[:0]
	for _, s := range o.Statuses {
		if IsValidStatus(s) && !slices.Contains(valid, s) {
			valid = append(valid, s)
		}
	}
	o.Statuses = valid
	return o
}

func (o ListOptions) match(job *Job) bool {
	if len(o.Statuses) > 0 && !slices.Contains(o.Statuses, job.Status) {
		return false
	}
	if o.Kind != "" && job.Kind != o.Kind {
		return false
	}
	return o.UpdatedBefore == 0 || job.UpdatedAt < o.UpdatedBefore
}
