package tencent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
	"golang.org/x/time/rate"
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "tencent-tmt").Logger()
	return &l
}

// textTranslator 是 tmt.Client 中用到的方法
type textTranslator interface {
	TextTranslateWithContext(ctx context.Context, request *tmt.TextTranslateRequest) (*tmt.TextTranslateResponse, error)
}

// Client 腾讯云机器翻译客户端
type Client struct {
	tmtClient textTranslator
	limiter   *rate.Limiter
	projectID int64
}

// NewClient region 为空时使用广州，projectID 为 0 时使用默认项目
func NewClient(secretID, secretKey, region string, projectID int64) (*Client, error) {
	credential := common.NewCredential(secretID, secretKey)

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = 10 // 秒

	if region == "" {
		region = regions.Guangzhou
	}
	tmtClient, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		logger().Error().Err(err).Msg("new tencent client error")
		return nil, fmt.Errorf("failed to create tmt client: %w", err)
	}

	return &Client{
		tmtClient: tmtClient,
		// 文本翻译接口默认 5 QPS
		limiter:   rate.NewLimiter(rate.Limit(5), 1),
		projectID: projectID,
	}, nil
}

// TranslateText 逐条翻译，空白文本原样返回
func (t *Client) TranslateText(ctx context.Context, texts []string, target string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		translated, err := t.translate(ctx, text, target)
		if err != nil {
			return nil, err
		}
		out[i] = translated
	}
	return out, nil
}

func (t *Client) translate(ctx context.Context, text, target string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	request := tmt.NewTextTranslateRequest()
	request.Source = common.StringPtr("auto")
	request.Target = common.StringPtr(target)
	request.SourceText = common.StringPtr(text)
	request.ProjectId = common.Int64Ptr(t.projectID)

	response, err := t.tmtClient.TextTranslateWithContext(ctx, request)
	if err != nil {
		logger().Error().Err(err).Msg("failed to send request")
		return "", fmt.Errorf("text translate: %w", err)
	}
	if response.Response == nil || response.Response.TargetText == nil {
		return "", fmt.Errorf("text translate: empty response")
	}
	return *response.Response.TargetText, nil
}
