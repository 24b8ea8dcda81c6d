// Package model defines the core domain models used throughout the application.
package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a document status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// DocumentType is the professional (document-shape) classification of a receipt.
type DocumentType string

// Document type constants. Values are the labels the models are prompted with.
const (
	DocumentInvoice     DocumentType = "发票"
	DocumentItinerary   DocumentType = "行程单"
	DocumentReceiptSlip DocumentType = "小票"
	DocumentReceipt     DocumentType = "收据"
)

// DocumentTypes lists every professional category in display order.
var DocumentTypes = []DocumentType{DocumentInvoice, DocumentItinerary, DocumentReceiptSlip, DocumentReceipt}

var documentTypeNames = map[string]DocumentType{
	"invoice":     DocumentInvoice,
	"itinerary":   DocumentItinerary,
	"receiptslip": DocumentReceiptSlip,
	"receipt":     DocumentReceipt,
}

var documentTypeDescriptions = map[DocumentType]string{
	DocumentInvoice:     "增值税普通发票、电子发票、专用发票（包含发票代码、号码、税号等）",
	DocumentItinerary:   "航空、铁路、巴士等交通凭证（包含车次/航班号、出发到达站等）",
	DocumentReceiptSlip: "超市、便利店、餐厅消费小票（包含商家名称、商品明细等）",
	DocumentReceipt:     "非税收入、押金、私人交易凭证（包含收付款方、金额等）",
}

// Description explains the document type to the models.
func (t DocumentType) Description() string {
	return documentTypeDescriptions[t]
}

// ParseDocumentType accepts either the label or the English name.
// Unknown input falls back to DocumentReceiptSlip with ok=false.
func ParseDocumentType(s string) (DocumentType, bool) {
	for _, t := range DocumentTypes {
		if string(t) == s {
			return t, true
		}
	}
	if t, ok := documentTypeNames[normalizeName(s)]; ok {
		return t, true
	}
	return DocumentReceiptSlip, false
}

// UserCategory is one of the nine fixed spending/income buckets shown to users.
type UserCategory string

// User category constants.
const (
	CategoryDining                 UserCategory = "餐饮消费"
	CategoryShopping               UserCategory = "购物消费"
	CategoryTransportation         UserCategory = "交通出行"
	CategoryHousing                UserCategory = "居住相关"
	CategoryMedical                UserCategory = "医疗健康"
	CategoryEducationEntertainment UserCategory = "教育文娱"
	CategorySocial                 UserCategory = "人情往来"
	CategoryIncome                 UserCategory = "收入类"
	CategoryOtherExpense           UserCategory = "其他支出"
)

// UserCategories lists the nine categories in display order.
var UserCategories = []UserCategory{
	CategoryDining,
	CategoryShopping,
	CategoryTransportation,
	CategoryHousing,
	CategoryMedical,
	CategoryEducationEntertainment,
	CategorySocial,
	CategoryIncome,
	CategoryOtherExpense,
}

var userCategoryNames = map[string]UserCategory{
	"dining":                 CategoryDining,
	"shopping":               CategoryShopping,
	"transportation":         CategoryTransportation,
	"housing":                CategoryHousing,
	"medical":                CategoryMedical,
	"educationentertainment": CategoryEducationEntertainment,
	"social":                 CategorySocial,
	"income":                 CategoryIncome,
	"otherexpense":           CategoryOtherExpense,
}

var userCategoryDescriptions = map[UserCategory]string{
	CategoryDining:                 "所有食物饮品支出：正餐、小吃、咖啡奶茶、外卖、聚餐等",
	CategoryShopping:               "日常实物购买：超市、便利店、网购、服饰美妆、数码产品等",
	CategoryTransportation:         "公共交通、打车、加油、停车、机票火车票等",
	CategoryHousing:                "房租、水电煤、物业费、宽带网络、维修服务",
	CategoryMedical:                "门诊药费、体检、保健品、医疗保险自付部分",
	CategoryEducationEntertainment: "书籍课程、培训学费、电影演出、游戏充值、旅游门票",
	CategorySocial:                 "礼物送礼、红包随礼、捐款捐赠、朋友分摊",
	CategoryIncome:                 "工资、兼职、投资回报、退款、他人转账",
	CategoryOtherExpense:           "无法明确归类或低频特殊支出（如罚款、手续费）",
}

// Description explains the category to the models.
func (c UserCategory) Description() string {
	return userCategoryDescriptions[c]
}

// ParseUserCategory accepts either the label or the English name.
// Unknown input falls back to CategoryOtherExpense with ok=false.
func ParseUserCategory(s string) (UserCategory, bool) {
	for _, c := range UserCategories {
		if string(c) == s {
			return c, true
		}
	}
	if c, ok := userCategoryNames[normalizeName(s)]; ok {
		return c, true
	}
	return CategoryOtherExpense, false
}

// IsIncome reports whether the category counts as income rather than expense.
func (c UserCategory) IsIncome() bool {
	return c == CategoryIncome
}

// DocumentStatus tracks whether a document has been confirmed by its owner.
type DocumentStatus string

// Document status constants.
const (
	StatusPending  DocumentStatus = "待确认"
	StatusVerified DocumentStatus = "已验证"
	StatusVoided   DocumentStatus = "已作废"
)

// Document is a recognized receipt owned by a user.
type Document struct {
	UploadTime       time.Time      `json:"upload_time"`
	StructuredFields map[string]any `json:"structured_fields,omitempty"`
	Amount           *float64       `json:"amount,omitempty"`
	IssuedDate       *string        `json:"issued_date,omitempty"`
	ID               string         `json:"id" validate:"required"`
	UserID           string         `json:"user_id" validate:"required"`
	Type             DocumentType   `json:"type" validate:"required"`
	SourceImage      string         `json:"source_image"`
	RecognizedText   string         `json:"recognized_text"`
	UserCategory     UserCategory   `json:"user_category,omitempty"`
	Status           DocumentStatus `json:"status" validate:"required"`
	TypeReasoning    string         `json:"type_reasoning,omitempty"`
	TagReasoning     string         `json:"tag_reasoning,omitempty"`
	Tags             []string       `json:"tags"`
}

// NewDocumentID returns a fresh document identifier.
func NewDocumentID() string {
	return uuid.New().String()
}

// Transition moves the document to a new status.
// Only Pending→Verified and Pending→Voided are permitted.
func (d *Document) Transition(to DocumentStatus) error {
	if d.Status != StatusPending || (to != StatusVerified && to != StatusVoided) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	return nil
}

// AddTag appends a tag unless it is empty or already present.
func (d *Document) AddTag(tag string) {
	if tag != "" && !d.HasTag(tag) {
		d.Tags = append(d.Tags, tag)
	}
}

// RemoveTag drops a tag if present.
func (d *Document) RemoveTag(tag string) {
	d.Tags = slices.DeleteFunc(d.Tags, func(t string) bool { return t == tag })
}

// HasTag reports whether the tag is attached.
func (d *Document) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// SetTags replaces the tag set, dropping blanks and duplicates while keeping order.
func (d *Document) SetTags(tags []string) {
	d.Tags = make([]string, 0, len(tags))
	for _, tag := range tags {
		d.AddTag(tag)
	}
}
