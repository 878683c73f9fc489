package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"
)

// DefaultPrompt is the built-in instruction template used when no custom
// prompt file is configured. It uses Go text/template syntax with Data
// fields: .StoreName, .OrderCode, .Menu
const DefaultPrompt = `Você é uma assistente virtual de atendimento de uma pizzaria chamada {{.StoreName}}. Você deve ser educada, atenciosa, amigável, cordial e muito paciente.

Você não pode oferecer nenhum item ou sabor que não esteja no cardápio. Siga estritamente as listas de opções.

O código do pedido é: {{.OrderCode}}

O roteiro de atendimento é:

1. Saudação inicial: cumprimente o cliente e agradeça por entrar em contato.
2. Coleta de informações: solicite ao cliente seu nome para registro caso ele ainda não tenha informado.
3. Quantidade de pizzas: pergunte ao cliente quantas pizzas ele deseja pedir.
4. Sabores: envie a lista de opções de sabores e pergunte qual sabor o cliente deseja para cada pizza. Cada pizza pode ter até dois sabores.
5. Tamanho: envie a lista de opções de tamanho e pergunte qual o tamanho de cada pizza.
6. Bebidas: envie a lista de opções de bebidas e pergunte se o cliente deseja pedir alguma bebida.
7. Endereço de entrega: pergunte o endereço de entrega completo com rua, número, bairro e ponto de referência.
8. Forma de pagamento: pergunte qual a forma de pagamento (dinheiro, pix, cartão de crédito ou débito). Se for dinheiro, pergunte se precisa de troco.
9. Resumo: apresente o resumo do pedido com os itens, o valor total e o endereço, e peça a confirmação do cliente.
10. Encerramento: somente depois que o cliente confirmar o pedido, agradeça, informe o tempo estimado de entrega de 45 minutos e envie o código do pedido {{.OrderCode}} exatamente como está escrito.

Nunca mencione o código do pedido antes da confirmação final do cliente.
{{- if .Menu}}

Cardápio:

{{.Menu}}
{{- end}}
`

// Data holds the values available to the prompt template.
type Data struct {
	StoreName string
	OrderCode string
	Menu      string
}

// MenuSource supplies the current menu text. An empty string omits the
// menu section.
type MenuSource interface {
	Text() string
}

// Builder renders the system instruction for new sessions.
type Builder struct {
	tmpl *template.Template
	menu MenuSource
}

const sampleOrderCode = "#sk-00000"

// NewBuilder parses templateText (DefaultPrompt when empty). The template
// must render the order code, since session completion is detected by the
// assistant echoing it back. menu may be nil.
func NewBuilder(templateText string, menu MenuSource) (*Builder, error) {
	if strings.TrimSpace(templateText) == "" {
		templateText = DefaultPrompt
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	var sample strings.Builder
	if err := tmpl.Execute(&sample, Data{StoreName: "store", OrderCode: sampleOrderCode}); err != nil {
		return nil, fmt.Errorf("render prompt template: %w", err)
	}
	if !strings.Contains(sample.String(), sampleOrderCode) {
		return nil, fmt.Errorf("prompt template must include {{.OrderCode}}")
	}

	return &Builder{tmpl: tmpl, menu: menu}, nil
}

// LoadBuilder reads the template from path, or uses DefaultPrompt when path
// is empty.
func LoadBuilder(path string, menu MenuSource) (*Builder, error) {
	if path == "" {
		return NewBuilder("", menu)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	return NewBuilder(string(data), menu)
}

// InitialPrompt renders the instruction for a session of storeName
// identified by orderCode.
func (b *Builder) InitialPrompt(storeName, orderCode string) string {
	data := Data{StoreName: storeName, OrderCode: orderCode}
	if b.menu != nil {
		data.Menu = strings.TrimSpace(b.menu.Text())
	}

	var out strings.Builder
	if err := b.tmpl.Execute(&out, data); err != nil {
		slog.Error("render prompt failed, using minimal instruction", "error", err)
		return fmt.Sprintf("Você é a assistente virtual da %s. Ao final do pedido confirmado, envie o código %s.",
			storeName, orderCode)
	}
	return out.String()
}
