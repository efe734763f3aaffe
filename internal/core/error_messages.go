package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Codes are grouped by category so support can tell at a glance where a
// failure happened:
//
//	ERP001-ERP099   ERP connectivity and remote faults
//	FILE001-FILE099 upload and decoding problems
//	RUN001-RUN099   run scheduling and lookup
//	RATE001         request throttling
//	ERR000          fallback, check the server logs
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/stocktransfer/internal/erp"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// ERP
	{
		pattern: "authentication failed",
		msg: UserMessage{
			Message: "No se pudo iniciar sesión en Odoo",
			Action:  "Verifique ODOO_USERNAME y ODOO_PASSWORD",
			Code:    "ERP001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "No se pudo conectar con Odoo",
			Action:  "Intente de nuevo en unos momentos",
			Code:    "ERP002",
		},
	},
	{
		pattern: "erp: http",
		msg: UserMessage{
			Message: "Odoo respondió con un error HTTP",
			Action:  "Revise que ODOO_URL apunte al servidor correcto",
			Code:    "ERP003",
		},
	},
	{
		pattern: "malformed response",
		msg: UserMessage{
			Message: "Respuesta inesperada de Odoo",
			Action:  "Revise que ODOO_URL apunte al servidor correcto",
			Code:    "ERP003",
		},
	},
	{
		pattern: "access denied",
		msg: UserMessage{
			Message: "El usuario de Odoo no tiene permisos suficientes",
			Action:  "Solicite permisos de inventario para el usuario configurado",
			Code:    "ERP004",
		},
	},

	// File
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No se seleccionó ningún archivo",
			Action:  "Seleccione uno o más archivos .txt",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "El archivo supera el tamaño máximo permitido",
			Action:  "Divida el archivo en partes más pequeñas",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "El archivo está vacío",
			Action:  "Suba un archivo con encabezado y registros",
			Code:    "FILE003",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Tipo de archivo no admitido",
			Action:  "Solo se procesan archivos .txt separados por punto y coma",
			Code:    "FILE005",
		},
	},
	{
		pattern: "validation errors",
		msg: UserMessage{
			Message: "El archivo tiene errores de validación",
			Action:  "Corrija los errores indicados y vuelva a subir el archivo",
			Code:    "FILE004",
		},
	},

	// Run
	{
		pattern: "too many runs",
		msg: UserMessage{
			Message: "Hay otra importación en curso",
			Action:  "Espere a que termine e intente de nuevo",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Ejecución no encontrada",
			Action:  "Verifique el identificador de la ejecución",
			Code:    "RUN002",
		},
	},
	{
		pattern: "invalid run id",
		msg: UserMessage{
			Message: "Identificador de ejecución inválido",
			Action:  "Verifique el identificador de la ejecución",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "La solicitud fue cancelada",
			Action:  "Intente de nuevo",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "La operación excedió el tiempo máximo",
			Action:  "Revise las transferencias creadas antes de reintentar",
			Code:    "RUN004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "La operación excedió el tiempo máximo",
			Action:  "Revise las transferencias creadas antes de reintentar",
			Code:    "RUN004",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Demasiadas solicitudes",
			Action:  "Espere un momento antes de intentar de nuevo",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Intente de nuevo o contacte a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A remote
// fault keeps Odoo's own message since it is usually actionable as is.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var re *erp.RemoteError
	if errors.As(err, &re) {
		return UserMessage{
			Message: "Odoo rechazó la operación: " + re.Message,
			Action:  "Revise los datos enviados y los permisos del usuario",
			Code:    "ERP005",
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Código: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
