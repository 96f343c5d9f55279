package worker

import (
	"github.com/spec-kit/crm-access/internal/service"
)

// StartAuditWorker registers audit handlers on the dispatcher.
func StartAuditWorker(auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}
