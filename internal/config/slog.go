// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "log/slog"

func (c Change) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", c.Event.Name),
		slog.String("op", c.Event.Op.String()),
	}
	if c.Config != nil {
		attrs = append(attrs, slog.Any("config", c.Config), slog.Any("sum", c.Sum))
	}
	if c.Err != nil {
		attrs = append(attrs, slog.Any("error", c.Err))
	}
	return slog.GroupValue(attrs...)
}
