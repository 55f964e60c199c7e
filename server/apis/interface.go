/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package apis

import "github.com/gin-gonic/gin"

// Handler serves the routes of the controller API.
type Handler interface {
	SystemInfo(c *gin.Context)
	ListServices(c *gin.Context)
	CreateService(c *gin.Context)
	GetService(c *gin.Context)
	DeleteService(c *gin.Context)
	SetScalingPolicy(c *gin.Context)
	ReportServiceMetrics(c *gin.Context)
	ListWorkUnits(c *gin.Context)
	UpdateWorkUnitStatus(c *gin.Context)
	ListQuotas(c *gin.Context)
	SetResourceQuota(c *gin.Context)
	ListNodes(c *gin.Context)
	RegisterNode(c *gin.Context)
	GetControllerMetrics(c *gin.Context)
	ListEvents(c *gin.Context)
	ListScalingDecisions(c *gin.Context)
	Reconcile(c *gin.Context)
}
