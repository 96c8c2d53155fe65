// Copyright (C) 2025 the treedeck authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mmtftr/gemini-3d-christmas-tree-decorator/services/decorator/storage/local"
)

// SetupRoutes registers the cloud tree store API on the router.
func SetupRoutes(router *gin.Engine, store *local.Store) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		trees := v1.Group("/trees")
		{
			trees.POST("", SaveTree(store))
			trees.GET("", ListTrees(store))
			trees.GET("/:treeId", GetTree(store))
			trees.DELETE("/:treeId", DeleteTree(store))
		}
	}
}

// New builds a gin engine with the store API mounted.
func New(store *local.Store) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("treedeck-store"))
	SetupRoutes(router, store)
	return router
}
