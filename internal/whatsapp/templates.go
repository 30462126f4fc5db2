package whatsapp

// Pre-approved template names registered in the Meta console.
const (
	TemplateStartMenu        = "menu_inicio"
	TemplateCatalog          = "ver_catalogo"
	TemplateBuyProducts      = "comprar_productos"
	TemplateConfirmPurchase  = "confirmar_compra"
	TemplatePurchaseComplete = "compra_confirma"
	TemplateSearchOrder      = "buscar_pedido"
	TemplateOrderFound       = "pedido_encontrado"
	TemplateOrderNotFound    = "pedido_no_encontrado"
	TemplateClosing          = "mensaje_salida"
)

// TemplateLanguage is the fixed language code for every outbound template.
const TemplateLanguage = "es_MX"
