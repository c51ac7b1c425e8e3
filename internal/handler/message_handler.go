package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/handler/helper"
	"github.com/yourusername/homepage-api/internal/middleware"
	"github.com/yourusername/homepage-api/internal/service"
)

// MessageHandler обслуживает гостевую книгу
type MessageHandler struct {
	messageService *service.MessageService
	log            *zap.Logger
}

// NewMessageHandler создает обработчик гостевой книги
func NewMessageHandler(messageService *service.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log.Named("message_handler"),
	}
}

// MessageRequest представляет текст новой записи или ответа
type MessageRequest struct {
	Content string `json:"content" form:"content" binding:"required"`
}

// ListMessages возвращает записи от новых к старым.
// GET /api/messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	messages, err := h.messageService.List(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, helper.ConvertMessages(messages, c.GetBool(middleware.ContextIsAdmin)))
}

// PostMessage добавляет запись от текущего пользователя.
// POST /api/messages
func (h *MessageHandler) PostMessage(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uint)

	var req MessageRequest
	if err := c.ShouldBind(&req); err != nil {
		bindingError(c, err)
		return
	}

	message, err := h.messageService.Post(c.Request.Context(), userID, req.Content)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	message.User.Username = c.GetString(middleware.ContextUsername)

	c.JSON(http.StatusCreated, helper.ConvertMessage(*message, c.GetBool(middleware.ContextIsAdmin)))
}

// ReplyMessage добавляет ответ администратора.
// POST /api/messages/:id/reply
func (h *MessageHandler) ReplyMessage(c *gin.Context) {
	developerID := c.MustGet(middleware.ContextUserID).(uint)
	messageID := c.GetUint(middleware.ContextMessageID)

	var req MessageRequest
	if err := c.ShouldBind(&req); err != nil {
		bindingError(c, err)
		return
	}

	reply, err := h.messageService.Reply(c.Request.Context(), developerID, messageID, req.Content)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	reply.Developer.Username = c.GetString(middleware.ContextUsername)

	c.JSON(http.StatusCreated, helper.ConvertReply(*reply))
}

// DeleteMessage удаляет запись вместе с ответами.
// DELETE /api/messages/:id
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID := c.GetUint(middleware.ContextMessageID)

	if err := h.messageService.Delete(c.Request.Context(), messageID); err != nil {
		handleError(c, h.log, err)
		return
	}

	h.log.Info("Message deleted",
		zap.Uint("message_id", messageID),
		zap.Uint("admin_id", c.GetUint(middleware.ContextUserID)))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted"})
}

// ExportMessages выгружает гостевую книгу в xlsx (по умолчанию) или csv.
// GET /api/admin/messages/export?format=xlsx|csv
func (h *MessageHandler) ExportMessages(c *gin.Context) {
	format := c.DefaultQuery("format", "xlsx")
	if format != "xlsx" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported export format", "error_type": "validation_error"})
		return
	}

	messages, err := h.messageService.List(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("guestbook_%s", time.Now().Format("20060102_150405"))
	if format == "csv" {
		h.exportCSV(c, messages, filename)
		return
	}
	h.exportXLSX(c, messages, filename)
}

func (h *MessageHandler) exportCSV(c *gin.Context, messages []entity.Message, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"ID", "User", "Message", "Date", "Reply by", "Reply", "Reply date"})
	for _, m := range messages {
		base := []string{
			strconv.FormatUint(uint64(m.ID), 10),
			sanitizeForExcel(m.User.Username),
			sanitizeForExcel(m.Content),
			m.CreatedAt.Format(helper.DateLayout),
		}
		if len(m.Replies) == 0 {
			writer.Write(append(base, "", "", ""))
			continue
		}
		// по строке на каждый ответ
		for _, r := range m.Replies {
			row := append(append([]string{}, base...),
				sanitizeForExcel(r.Developer.Username),
				sanitizeForExcel(r.Content),
				r.CreatedAt.Format(helper.DateLayout),
			)
			writer.Write(row)
		}
	}
}

// exportXLSX пишет два листа через StreamWriter: записи и ответы
func (h *MessageHandler) exportXLSX(c *gin.Context, messages []entity.Message, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	const messagesSheet, repliesSheet = "Messages", "Replies"
	f.SetSheetName("Sheet1", messagesSheet)
	if _, err := f.NewSheet(repliesSheet); err != nil {
		h.log.Error("Failed to create sheet", zap.String("sheet", repliesSheet), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}

	sw, err := f.NewStreamWriter(messagesSheet)
	if err != nil {
		h.log.Error("Failed to create StreamWriter", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}
	if err := sw.SetRow("A1", []interface{}{"ID", "User", "Message", "Date", "Replies"}); err != nil {
		h.log.Warn("Failed to write header", zap.Error(err))
	}
	for i, m := range messages {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{m.ID, sanitizeForExcel(m.User.Username), sanitizeForExcel(m.Content), m.CreatedAt.Format(helper.DateLayout), len(m.Replies)}
		if err := sw.SetRow(cell, row); err != nil {
			h.log.Warn("Failed to write row", zap.Int("row", i+2), zap.Error(err))
		}
	}
	if err := sw.Flush(); err != nil {
		h.log.Error("Failed to flush sheet", zap.String("sheet", messagesSheet), zap.Error(err))
	}

	rw, err := f.NewStreamWriter(repliesSheet)
	if err != nil {
		h.log.Error("Failed to create StreamWriter", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}
	if err := rw.SetRow("A1", []interface{}{"Message ID", "Reply by", "Reply", "Date"}); err != nil {
		h.log.Warn("Failed to write header", zap.Error(err))
	}
	rowNum := 2
	for _, m := range messages {
		for _, r := range m.Replies {
			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			row := []interface{}{m.ID, sanitizeForExcel(r.Developer.Username), sanitizeForExcel(r.Content), r.CreatedAt.Format(helper.DateLayout)}
			if err := rw.SetRow(cell, row); err != nil {
				h.log.Warn("Failed to write row", zap.Int("row", rowNum), zap.Error(err))
			}
			rowNum++
		}
	}
	if err := rw.Flush(); err != nil {
		h.log.Error("Failed to flush sheet", zap.String("sheet", repliesSheet), zap.Error(err))
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		h.log.Error("Failed to write Excel response", zap.Error(err))
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
