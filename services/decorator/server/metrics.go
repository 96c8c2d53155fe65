// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treedeck_tree_saves_total",
		Help: "Tree save requests handled by the cloud store, by result.",
	}, []string{"result"})

	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treedeck_tree_loads_total",
		Help: "Tree load requests handled by the cloud store, by result.",
	}, []string{"result"})

	deletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treedeck_tree_deletes_total",
		Help: "Tree delete requests handled by the cloud store.",
	})
)

const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultInvalid  = "invalid"
	resultError    = "error"
)
