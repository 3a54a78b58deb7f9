package gemini

// ExtractionPrompt instructs the model to return only the bill JSON. It is
// written in Spanish, matching the language of the field labels on the page.
const ExtractionPrompt = `Analiza ÚNICAMENTE esta factura de servicios públicos colombiana (agua, luz, gas, internet, telefonía) y extrae SOLO los datos financieros y de identificación relevantes.

IMPORTANTE - IGNORA COMPLETAMENTE:
- Texto publicitario, información demográfica, estadísticas
- Información sobre "adultos mayores", "familias", "grupos demográficos"
- Números de teléfono (NO los uses como código de referencia o contrato)
- Información que NO sea parte de los datos de la factura

JSON requerido (SOLO estos campos):
{
    "numero_contrato": "número de contrato del servicio (string, vacío si no existe)",
    "direccion": "dirección del inmueble donde se presta el servicio (string, vacío si no existe)",
    "codigo_referencia": "código de referencia para pago electrónico/PSE (string, vacío si no existe)",
    "total_pagar": número decimal sin símbolos de moneda (ejemplo: 125000.50, 0 si no existe),
    "empresa": "nombre de la empresa de servicios públicos (string, vacío si no existe)",
    "periodo_facturado": "periodo de facturación (ejemplo: 'Enero 2024', '01/2024', vacío si no existe)",
    "fecha_vencimiento": "fecha de vencimiento en formato DD/MM/YYYY (string, vacío si no existe)",
    "numero_factura": "número de factura o recibo (string, vacío si no existe)",
    "nit_empresa": "NIT de la empresa (string, vacío si no existe)",
    "consumo": número decimal del consumo en unidades (ejemplo: 150.5, 0 si no aplica o no existe),
    "medidor": "número de medidor si aplica (string, vacío si no existe)"
}

REGLAS ESTRICTAS:
1. numero_contrato: Busca SOLO en "CONTRATO", "No. CONTRATO", "Código Cliente". NO uses números de teléfono, cédulas, o números aleatorios.
2. direccion: SOLO la dirección física del inmueble. NO incluyas direcciones de oficinas, páginas web, o información de contacto.
3. codigo_referencia: SOLO códigos de referencia para pago (PSE, código de barras, referencia de pago). NO uses números de teléfono, cédulas, o números aleatorios.
4. total_pagar: SOLO el monto total a pagar de la factura. Extrae SOLO números, sin símbolos $, puntos de miles, o comas.
5. empresa: SOLO el nombre de la empresa de servicios públicos. NO incluyas información adicional.
6. consumo: SOLO si es un servicio medido (agua, luz, gas). Si no aplica o no existe, usa 0.
7. medidor: SOLO el número de medidor físico. NO uses otros números.

VALIDACIÓN CRÍTICA:
- NO extraigas información demográfica, estadísticas, o texto publicitario
- NO uses números de teléfono como código de referencia o contrato
- NO incluyas información que no esté directamente relacionada con la factura
- Si un campo no está visible o no existe en la factura, usa "" para strings y 0 para números

Devuelve ÚNICAMENTE el JSON válido, sin markdown, sin explicaciones, sin texto adicional.`

// Generation defaults. Temperature is kept near zero for deterministic
// structured output; the token tiers escalate the output budget across retry
// attempts to recover from truncated responses.
const (
	DefaultTemperature = 0.1
	DefaultTopP        = 0.95
	DefaultTopK        = 40
)

// DefaultTokenTiers is the escalating max-output-token schedule, one tier per
// retry attempt. Later attempts reuse the last tier.
var DefaultTokenTiers = []int32{2048, 3072, 4096}
